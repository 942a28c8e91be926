package canvas

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	_ "golang.org/x/image/webp"
)

// maxImageBytes bounds how much of a remote image is read.
const maxImageBytes = 32 << 20

// LoadImage decodes a PNG, JPEG or WebP image from an http(s) URL or a local file path.
func LoadImage(ctx context.Context, client *http.Client, src string) (image.Image, error) {
	var r io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("canvas.LoadImage: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("canvas.LoadImage: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("canvas.LoadImage: %s: unexpected status %s", src, resp.Status)
		}
		r = resp.Body
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("canvas.LoadImage: %w", err)
		}
		r = f
	}
	defer r.Close()

	img, format, err := image.Decode(io.LimitReader(r, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("canvas.LoadImage: decode %s: %w", src, err)
	}
	slog.Debug("loaded image", "src", src, "format", format, "bounds", img.Bounds())
	return img, nil
}
