package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
)

func TestContentHash(t *testing.T) {
	h1 := ContentHash([]byte("hello world"))
	h2 := ContentHash([]byte("hello world"))
	h3 := ContentHash([]byte("different content"))

	if h1 != h2 {
		t.Error("same content should produce same hash")
	}
	if h1 == h3 {
		t.Error("different content should produce different hash")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
}

func TestIDFor(t *testing.T) {
	tests := map[string]string{
		"p1.pdf":              "p1.json",
		"/data/papers/p2.PDF": "p2.json",
		"notes.md":            "notes.json",
		"noext":               "noext.json",
	}
	for in, want := range tests {
		if got := IDFor(in); got != want {
			t.Errorf("IDFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "corpus")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("corpus dir not created: %v", err)
	}
	if s.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", s.Dir(), dir)
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	snap := domain.NewSnapshot("p1.pdf", "Autism spectrum disorder in toddlers.")
	if err := s.Save("p1.json", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("p1.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.FileName != "p1.pdf" {
		t.Errorf("FileName = %q, want p1.pdf", got.FileName)
	}
	if got.FullText() != snap.FullText() {
		t.Errorf("FullText = %q, want %q", got.FullText(), snap.FullText())
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestStoreSave_Overwrites(t *testing.T) {
	s, _ := Open(t.TempDir())
	_ = s.Save("p1.json", domain.NewSnapshot("p1.pdf", "old"))
	if err := s.Save("p1.json", domain.NewSnapshot("p1.pdf", "new")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load("p1.json")
	if err != nil {
		t.Fatal(err)
	}
	if got.FullText() != "new" {
		t.Errorf("FullText = %q, want new", got.FullText())
	}
}

func TestStoreLoad_NotFound(t *testing.T) {
	s, _ := Open(t.TempDir())
	_, err := s.Load("missing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_RejectsInvalidIDs(t *testing.T) {
	s, _ := Open(t.TempDir())
	for _, id := range []string{"", "../escape.json", "sub/p1.json", ".hidden.json", "p1.pdf"} {
		if err := s.Save(id, domain.NewSnapshot("x", "y")); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Save(%q) err = %v, want ErrValidation", id, err)
		}
	}
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	for _, id := range []string{"p2.json", "p1.json", "p10.json"} {
		if err := s.Save(id, domain.NewSnapshot(id, "text")); err != nil {
			t.Fatal(err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, ".partial.json"), []byte("{"), 0o644)
	_ = os.Mkdir(filepath.Join(dir, "sub.json"), 0o755)

	ids, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"p1.json", "p10.json", "p2.json"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List() = %v, want %v", ids, want)
	}
}

func TestStoreDelete(t *testing.T) {
	s, _ := Open(t.TempDir())
	_ = s.Save("p1.json", domain.NewSnapshot("p1.pdf", "text"))

	if err := s.Delete("p1.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load("p1.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete("p1.json"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestStoreRecords(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	_ = s.Save("p1.json", domain.NewSnapshot("p1.pdf", "first paper"))
	_ = s.Save("p2.json", domain.NewSnapshot("p2.pdf", ""))
	_ = os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644)

	recs, bad, err := s.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != "p1.json" || recs[0].Text != "first paper" {
		t.Errorf("recs[0] = %+v", recs[0])
	}
	if recs[0].Metadata["source"] != "p1.json" || recs[0].Metadata["file_name"] != "p1.pdf" {
		t.Errorf("recs[0].Metadata = %v", recs[0].Metadata)
	}
	// Empty text is left for the ingestion boundary to reject.
	if recs[1].ID != "p2.json" || recs[1].Text != "" {
		t.Errorf("recs[1] = %+v", recs[1])
	}
	if len(bad) != 1 || bad[0].ID != "broken.json" {
		t.Fatalf("bad = %+v, want broken.json", bad)
	}
	if !errors.Is(bad[0].Err, domain.ErrValidation) {
		t.Errorf("bad[0].Err = %v, want ErrValidation", bad[0].Err)
	}
}
