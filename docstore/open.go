package docstore

import (
	"fmt"
	"strings"
)

// Open returns the Store described by dsn:
//
//	memory:                 in-memory, lost on exit
//	sqlite:path/to/file.db  SQLite database file
//	postgres://...          PostgreSQL connection url
func Open(dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory:":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return nil, fmt.Errorf("docstore.Open: %q: missing database path", dsn)
		}
		return OpenSQLite(path)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("docstore.Open: unsupported store %q", dsn)
	}
}
