package docstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Travis-Britz/hexboard/docstore"
)

func TestMemory(t *testing.T) {
	testStore(t, docstore.NewMemory())
}

func TestSQLite(t *testing.T) {
	s, err := docstore.OpenSQLite(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	ctx := context.Background()
	s, err := docstore.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "hexTiles", "1,2", json.RawMessage(`{"q":1,"r":2}`)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = docstore.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	doc, err := s.Get(ctx, "hexTiles", "1,2")
	if err != nil {
		t.Fatal(err)
	}
	if string(doc.Data) != `{"q":1,"r":2}` {
		t.Errorf("expected the document to survive a reopen; got %s", doc.Data)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("HEXBOARD_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("HEXBOARD_TEST_POSTGRES not set")
	}
	s, err := docstore.OpenPostgres(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestOpen(t *testing.T) {
	tt := map[string]struct {
		DSN string
		Err bool
	}{
		"default":        {DSN: ""},
		"memory":         {DSN: "memory:"},
		"sqlite":         {DSN: "sqlite:" + filepath.Join(t.TempDir(), "open.db")},
		"sqlite no path": {DSN: "sqlite:", Err: true},
		"unknown":        {DSN: "mongodb://localhost", Err: true},
	}
	for name, tc := range tt {
		s, err := docstore.Open(tc.DSN)
		if tc.Err {
			if err == nil {
				t.Errorf("%s: expected an error", name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: expected nil error; got %v", name, err)
			continue
		}
		s.Close()
	}
}

// testStore runs the behavior every Store must share.
// Each call uses its own collection so stores backed by shared databases start empty.
func testStore(t *testing.T, s docstore.Store) {
	t.Helper()
	ctx := context.Background()
	collection := "test_" + t.Name()

	// jsonb does not preserve formatting, so compare decoded values
	same := func(a, b json.RawMessage) bool {
		var va, vb any
		if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
			return false
		}
		ja, _ := json.Marshal(va)
		jb, _ := json.Marshal(vb)
		return string(ja) == string(jb)
	}

	if docs, err := s.GetAll(ctx, collection); err != nil || len(docs) != 0 {
		t.Fatalf("expected an empty collection; got %v, %v", docs, err)
	}
	if _, err := s.Get(ctx, collection, "0,0"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound; got %v", err)
	}

	var changes []docstore.Change
	cancel := s.Subscribe(collection, func(c docstore.Change) { changes = append(changes, c) })

	writes := map[string]string{
		"2,1": `{"q":2,"r":1,"title":"b"}`,
		"0,0": `{"q":0,"r":0,"title":"a"}`,
		"5,5": `{"q":5,"r":5}`,
	}
	for id, data := range writes {
		if err := s.Set(ctx, collection, id, json.RawMessage(data)); err != nil {
			t.Fatalf("set %s: %v", id, err)
		}
	}
	if err := s.Set(ctx, collection, "2,1", json.RawMessage(`{"q":2,"r":1,"title":"c"}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, collection, "bad", json.RawMessage(`{`)); err == nil {
		t.Errorf("expected invalid json to be rejected")
	}
	if err := s.Set(ctx, collection, "", json.RawMessage(`{}`)); err == nil {
		t.Errorf("expected an empty id to be rejected")
	}

	docs, err := s.GetAll(ctx, collection)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents; got %d", len(docs))
	}
	for i, id := range []string{"0,0", "2,1", "5,5"} {
		if docs[i].ID != id {
			t.Errorf("expected document %d to be %s; got %s", i, id, docs[i].ID)
		}
	}
	if !same(docs[1].Data, json.RawMessage(`{"q":2,"r":1,"title":"c"}`)) {
		t.Errorf("expected the replaced document; got %s", docs[1].Data)
	}

	if err := s.Delete(ctx, collection, "5,5"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, collection, "5,5"); err != nil {
		t.Errorf("expected deleting a missing document to succeed; got %v", err)
	}
	if _, err := s.Get(ctx, collection, "5,5"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete; got %v", err)
	}

	cancel()
	if err := s.Set(ctx, collection, "9,9", json.RawMessage(`{}`)); err != nil {
		t.Fatal(err)
	}

	if len(changes) != 5 {
		t.Fatalf("expected 5 changes before cancel; got %d: %v", len(changes), changes)
	}
	last := changes[len(changes)-1]
	if last.Kind != docstore.Deleted || last.ID != "5,5" || last.Data != nil {
		t.Errorf("expected a deletion of 5,5; got %+v", last)
	}
	for _, c := range changes[:4] {
		if c.Kind != docstore.Updated || c.Collection != collection {
			t.Errorf("expected an update in %s; got %+v", collection, c)
		}
	}

	// cleanup for shared databases
	for _, id := range []string{"0,0", "2,1", "9,9"} {
		s.Delete(ctx, collection, id)
	}
}
