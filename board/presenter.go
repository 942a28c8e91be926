package board

import (
	"github.com/Travis-Britz/hexboard"
)

// Presenter shows the board to one viewer.
// Its methods are called from the board's goroutine and should return quickly.
type Presenter interface {
	// FrameRendered is called after each frame has been drawn to the canvas.
	FrameRendered()

	// EditTile asks the viewer to fill in a form for a tile.
	// The answer comes back through Board.SubmitTile.
	EditTile(EditRequest)

	ShowTooltip(Tooltip)
	HideTooltip()

	// BulkSelected is called when a drag selection ends.
	// The viewer picks a bulk action or calls Board.CloseBulk.
	BulkSelected(keys []hexboard.Key)

	ModeChanged(Mode)

	// Notify shows a short message, such as a failed write.
	Notify(message string)
}

// EditRequest asks for the attributes of Kind on Tile.
type EditRequest struct {
	Kind EditKind      `json:"kind"`
	Tile hexboard.Tile `json:"tile"`
}

// Tooltip describes the tile under the pointer.
type Tooltip struct {
	Key hexboard.Key `json:"key"`

	// X and Y are the pointer position.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	Title string `json:"title"`
	Info  string `json:"info"`
	Image string `json:"image,omitempty"`

	Lord      string `json:"lord"`
	LordInfo  string `json:"lordInfo,omitempty"`
	LordVideo string `json:"lordVideo,omitempty"`
}

// UnknownLord is shown in tooltips of tiles without a lord.
const UnknownLord = "Unknown Lord"

func newTooltip(t hexboard.Tile, x, y float64) Tooltip {
	lord := t.Lord
	if lord == "" {
		lord = UnknownLord
	}
	return Tooltip{
		Key:       t.Key(),
		X:         x,
		Y:         y,
		Title:     t.Title,
		Info:      t.Info,
		Image:     t.Image,
		Lord:      lord,
		LordInfo:  t.LordInfo,
		LordVideo: t.LordVideo,
	}
}

// Messages passed to Presenter.Notify.
const (
	NoticeSignInRequired = "You must be logged in to edit."
	NoticeWriteFailed    = "Could not complete the action. "
)
