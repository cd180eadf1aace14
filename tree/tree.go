// Package tree reconstructs a hierarchical file tree from a flat archive
// entry listing and derives aggregate statistics from it.
package tree

import (
	"sort"
	"strings"

	"github.com/arca-io/arca/types"
)

// BuildTree converts a flat entry list into a node tree.
//
// Entries are sorted by path first for deterministic output. Directory paths
// have their trailing slash stripped; empty segments are ignored. Every
// non-terminal segment exists as a directory node, synthesized if no entry
// declared it. Only the terminal segment receives the entry's own metadata.
// A path listed as a file that also prefixes deeper entries is promoted to a
// directory, dropping its file metadata.
func BuildTree(entries []*types.ArchiveEntry) []*types.ArchiveFileNode {
	sorted := make([]*types.ArchiveEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var roots []*types.ArchiveFileNode
	lookup := make(map[string]*types.ArchiveFileNode)

	for _, entry := range sorted {
		path := strings.TrimSuffix(entry.Path, "/")
		segments := splitPath(path)
		if len(segments) == 0 {
			continue
		}

		var parent *types.ArchiveFileNode
		walked := ""
		for i, seg := range segments {
			if walked == "" {
				walked = seg
			} else {
				walked = walked + "/" + seg
			}
			terminal := i == len(segments)-1

			node, ok := lookup[walked]
			if ok && !terminal && !node.IsDirectory {
				// A path that shows up both as a file and as a parent of
				// deeper entries becomes a directory; the file metadata is
				// discarded so its children stay reachable.
				node.IsDirectory = true
				node.Size = 0
				node.CompressedSize = nil
			}
			if !ok {
				node = &types.ArchiveFileNode{
					Name: seg,
					Path: walked,
					// Ancestors synthesized for a deeper entry are directories.
					IsDirectory: !terminal,
				}
				lookup[walked] = node
				if parent == nil {
					roots = append(roots, node)
				} else {
					parent.Children = append(parent.Children, node)
				}
			}

			if terminal {
				// A node is a directory iff at least one entry declared it so,
				// or it was synthesized as an ancestor.
				node.IsDirectory = node.IsDirectory || entry.IsDirectory
				if !node.IsDirectory && !entry.IsDirectory {
					node.Size = entry.Size
					node.CompressedSize = entry.CompressedSize
				}
				if entry.ModTime != nil {
					node.ModTime = entry.ModTime
				}
			}
			parent = node
		}
	}

	return roots
}

// ComputeStats derives aggregate statistics from a tree. Sizes are summed over
// non-directory nodes only. CompressionRatio is nil whenever no entry carried
// a compressed size or TotalSize is zero.
func ComputeStats(nodes []*types.ArchiveFileNode) types.ArchiveStats {
	var stats types.ArchiveStats
	var compressed int64
	haveCompressed := false

	var walk func(nodes []*types.ArchiveFileNode)
	walk = func(nodes []*types.ArchiveFileNode) {
		for _, n := range nodes {
			if n.IsDirectory {
				walk(n.Children)
				continue
			}
			stats.TotalFiles++
			stats.TotalSize += n.Size
			if n.CompressedSize != nil {
				compressed += *n.CompressedSize
				haveCompressed = true
			}
		}
	}
	walk(nodes)

	if haveCompressed {
		stats.TotalCompressed = &compressed
		if stats.TotalSize > 0 {
			ratio := float64(compressed) / float64(stats.TotalSize)
			stats.CompressionRatio = &ratio
		}
	}

	return stats
}

// Flatten returns all file nodes depth-first. Directories are traversed but
// excluded from the output.
func Flatten(nodes []*types.ArchiveFileNode) []*types.ArchiveFileNode {
	var out []*types.ArchiveFileNode

	var walk func(nodes []*types.ArchiveFileNode)
	walk = func(nodes []*types.ArchiveFileNode) {
		for _, n := range nodes {
			if n.IsDirectory {
				walk(n.Children)
				continue
			}
			out = append(out, n)
		}
	}
	walk(nodes)

	return out
}

// splitPath splits on '/' ignoring empty segments.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
