package tree

import (
	"testing"
	"time"

	"github.com/arca-io/arca/types"
)

func entry(path string, size int64, isDir bool) *types.ArchiveEntry {
	return &types.ArchiveEntry{Path: path, Size: size, IsDirectory: isDir}
}

func findChild(t *testing.T, parent *types.ArchiveFileNode, name string) *types.ArchiveFileNode {
	t.Helper()
	for _, c := range parent.Children {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("child %q not found under %q", name, parent.Path)
	return nil
}

func TestBuildTree_NestedWithExplicitDirectory(t *testing.T) {
	entries := []*types.ArchiveEntry{
		entry("a/b/c.txt", 10, false),
		entry("a/b/", 0, true),
		entry("a/d.txt", 5, false),
	}

	roots := BuildTree(entries)
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}

	a := roots[0]
	if a.Name != "a" || !a.IsDirectory {
		t.Fatalf("root = %q (dir=%v), want synthesized directory a", a.Name, a.IsDirectory)
	}
	if len(a.Children) != 2 {
		t.Fatalf("a has %d children, want 2", len(a.Children))
	}

	b := findChild(t, a, "b")
	if !b.IsDirectory {
		t.Error("a/b must be a directory")
	}
	c := findChild(t, b, "c.txt")
	if c.IsDirectory || c.Size != 10 || c.Path != "a/b/c.txt" {
		t.Errorf("a/b/c.txt node = %+v", c)
	}

	d := findChild(t, a, "d.txt")
	if d.IsDirectory || d.Size != 5 {
		t.Errorf("a/d.txt node = %+v", d)
	}

	flat := Flatten(roots)
	wantPaths := []string{"a/b/c.txt", "a/d.txt"}
	if len(flat) != len(wantPaths) {
		t.Fatalf("Flatten returned %d files, want %d", len(flat), len(wantPaths))
	}
	for i, want := range wantPaths {
		if flat[i].Path != want {
			t.Errorf("Flatten[%d] = %q, want %q", i, flat[i].Path, want)
		}
	}
}

func TestBuildTree_FileWithDeeperEntriesBecomesDirectory(t *testing.T) {
	entries := []*types.ArchiveEntry{
		entry("a", 7, false),
		entry("a/b.txt", 3, false),
	}

	roots := BuildTree(entries)
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	a := roots[0]
	if !a.IsDirectory {
		t.Fatal("a must be promoted to a directory")
	}
	if a.Size != 0 || a.CompressedSize != nil {
		t.Errorf("promoted node keeps file metadata: %+v", a)
	}
	b := findChild(t, a, "b.txt")
	if b.IsDirectory || b.Size != 3 {
		t.Errorf("a/b.txt node = %+v", b)
	}

	flat := Flatten(roots)
	if len(flat) != 1 || flat[0].Path != "a/b.txt" {
		t.Fatalf("Flatten = %+v, want only a/b.txt", flat)
	}
	stats := ComputeStats(roots)
	if stats.TotalFiles != 1 || stats.TotalSize != 3 {
		t.Errorf("stats = %+v, want 1 file of 3 bytes", stats)
	}
}

func TestBuildTree_RootLevelFile(t *testing.T) {
	// A zero-separator path is a direct child of the root.
	roots := BuildTree([]*types.ArchiveEntry{entry("readme.txt", 3, false)})
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	if roots[0].Path != "readme.txt" || roots[0].IsDirectory {
		t.Errorf("root = %+v, want file readme.txt", roots[0])
	}
}

func TestBuildTree_TrailingSlashNormalized(t *testing.T) {
	roots := BuildTree([]*types.ArchiveEntry{
		entry("docs/", 0, true),
		entry("docs/a.md", 1, false),
	})
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	docs := roots[0]
	if docs.Path != "docs" || !docs.IsDirectory {
		t.Errorf("docs node = %+v", docs)
	}
	if len(docs.Children) != 1 {
		t.Fatalf("docs has %d children, want 1", len(docs.Children))
	}
}

func TestBuildTree_EmptySegmentsIgnored(t *testing.T) {
	roots := BuildTree([]*types.ArchiveEntry{entry("a//b.txt", 1, false)})
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	b := findChild(t, roots[0], "b.txt")
	if b.Path != "a/b.txt" {
		t.Errorf("path = %q, want a/b.txt", b.Path)
	}
}

func TestBuildTree_DeterministicOrder(t *testing.T) {
	entries := []*types.ArchiveEntry{
		entry("z.txt", 1, false),
		entry("a.txt", 1, false),
		entry("m/x.txt", 1, false),
	}

	roots := BuildTree(entries)
	got := make([]string, len(roots))
	for i, n := range roots {
		got[i] = n.Name
	}
	want := []string{"a.txt", "m", "z.txt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("root order = %v, want %v", got, want)
		}
	}
}

func TestBuildTree_PathsUnique(t *testing.T) {
	// The same path appearing twice must not produce duplicate nodes.
	roots := BuildTree([]*types.ArchiveEntry{
		entry("a/b.txt", 1, false),
		entry("a/b.txt", 2, false),
	})
	if len(roots) != 1 || len(roots[0].Children) != 1 {
		t.Fatalf("duplicate paths produced duplicate nodes: %+v", roots)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.TotalFiles != 0 || stats.TotalSize != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
	if stats.CompressionRatio != nil {
		t.Error("CompressionRatio must be nil for an empty tree")
	}
	if stats.TotalCompressed != nil {
		t.Error("TotalCompressed must be nil for an empty tree")
	}
}

func TestComputeStats_FilesOnly(t *testing.T) {
	c1 := int64(4)
	c2 := int64(6)
	now := time.Now()
	roots := BuildTree([]*types.ArchiveEntry{
		{Path: "a/b.txt", Size: 10, CompressedSize: &c1, ModTime: &now},
		{Path: "a/c.txt", Size: 30, CompressedSize: &c2},
		{Path: "a/", IsDirectory: true},
	})

	stats := ComputeStats(roots)
	if stats.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", stats.TotalFiles)
	}
	if stats.TotalSize != 40 {
		t.Errorf("TotalSize = %d, want 40", stats.TotalSize)
	}
	if stats.TotalCompressed == nil || *stats.TotalCompressed != 10 {
		t.Errorf("TotalCompressed = %v, want 10", stats.TotalCompressed)
	}
	if stats.CompressionRatio == nil || *stats.CompressionRatio != 0.25 {
		t.Errorf("CompressionRatio = %v, want 0.25", stats.CompressionRatio)
	}
}

func TestComputeStats_NoCompressedSizes(t *testing.T) {
	roots := BuildTree([]*types.ArchiveEntry{entry("a.txt", 10, false)})
	stats := ComputeStats(roots)
	if stats.CompressionRatio != nil {
		t.Error("CompressionRatio must be nil when no entry carried a compressed size")
	}
}

func TestComputeStats_ZeroSizeAvoidsDivision(t *testing.T) {
	c := int64(0)
	roots := BuildTree([]*types.ArchiveEntry{{Path: "empty.txt", Size: 0, CompressedSize: &c}})
	stats := ComputeStats(roots)
	if stats.CompressionRatio != nil {
		t.Error("CompressionRatio must be nil when TotalSize is zero")
	}
	if stats.TotalCompressed == nil {
		t.Error("TotalCompressed should still be reported")
	}
}

func TestFlatten_EmptyTree(t *testing.T) {
	if got := Flatten(nil); len(got) != 0 {
		t.Errorf("Flatten(nil) = %v, want empty", got)
	}
}
