package handoff

import (
	"bytes"
	"testing"
)

func TestPutTake(t *testing.T) {
	s := NewMemoryStore()
	if got := s.Take(); got != nil {
		t.Fatalf("Take() on empty store = %+v, want nil", got)
	}

	s.Put(&File{Name: "a.zip", Data: []byte{1, 2, 3}})
	got := s.Take()
	if got == nil || got.Name != "a.zip" || !bytes.Equal(got.Data, []byte{1, 2, 3}) {
		t.Fatalf("Take() = %+v", got)
	}
	if s.Take() != nil {
		t.Error("Take() should clear the pending file")
	}
}

func TestPutReplaces(t *testing.T) {
	s := NewMemoryStore()
	s.Put(&File{Name: "first.zip"})
	s.Put(&File{Name: "second.zip"})
	if got := s.Take(); got == nil || got.Name != "second.zip" {
		t.Fatalf("Take() = %+v, want second.zip", got)
	}
}

func TestClearIdempotent(t *testing.T) {
	s := NewMemoryStore()
	s.Put(&File{Name: "x.zip"})
	s.Clear()
	s.Clear()
	if s.Take() != nil {
		t.Error("Clear() did not discard the pending file")
	}
}
