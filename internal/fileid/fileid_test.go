package fileid

import (
	"testing"

	"github.com/google/uuid"
)

func TestContentHash(t *testing.T) {
	h1 := ContentHash([]byte("hello"))
	h2 := ContentHash([]byte("hello"))
	if h1 != h2 {
		t.Errorf("same content should give same hash: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected sha256: %s", h1)
	}
	if ContentHash([]byte("hello ")) == h1 {
		t.Error("different content should give different hash")
	}
}

func TestChunkID(t *testing.T) {
	id1 := ChunkID("doc", 0, "text")
	if id1 != ChunkID("doc", 0, "text") {
		t.Error("chunk id should be deterministic")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("chunk id is not a uuid: %v", err)
	}
	others := []string{
		ChunkID("doc", 1, "text"),
		ChunkID("doc2", 0, "text"),
		ChunkID("doc", 0, "text2"),
	}
	for _, o := range others {
		if o == id1 {
			t.Errorf("expected distinct id, got %s", o)
		}
	}
}

func TestNew(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Error("random ids should differ")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("not a uuid: %v", err)
	}
}
