package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	hub

	conn *sqlx.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("docstore.OpenSQLite: open db: %w", err)
	}
	// one writer at a time; sqlite serializes writes anyway
	conn.SetMaxOpenConns(1)

	db := &SQLite{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore.OpenSQLite: migrate: %w", err)
	}
	slog.Debug("opened sqlite document store", "path", path)
	return db, nil
}

func (db *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (collection, id)
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type sqliteRow struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

func (db *SQLite) GetAll(ctx context.Context, collection string) ([]Document, error) {
	var rows []sqliteRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT id, data FROM documents WHERE collection = ? ORDER BY id", collection)
	if err != nil {
		return nil, fmt.Errorf("docstore.SQLite.GetAll: %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, Document{ID: r.ID, Data: json.RawMessage(r.Data)})
	}
	return docs, nil
}

func (db *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	var r sqliteRow
	err := db.conn.GetContext(ctx, &r,
		"SELECT id, data FROM documents WHERE collection = ? AND id = ?", collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore.SQLite.Get: %s/%s: %w", collection, id, err)
	}
	return Document{ID: r.ID, Data: json.RawMessage(r.Data)}, nil
}

func (db *SQLite) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	if err := validate(collection, id); err != nil {
		return fmt.Errorf("docstore.SQLite.Set: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("docstore.SQLite.Set: %s/%s: invalid json", collection, id)
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("docstore.SQLite.Set: %s/%s: %w", collection, id, err)
	}
	db.publish(Change{Collection: collection, ID: id, Kind: Updated, Data: clone(data)})
	return nil
}

func (db *SQLite) Delete(ctx context.Context, collection, id string) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("docstore.SQLite.Delete: %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		db.publish(Change{Collection: collection, ID: id, Kind: Deleted})
	}
	return nil
}

func (db *SQLite) Close() error {
	return db.conn.Close()
}
