// Package repotree converts the analyzer's compact directory mapping into a
// typed tree suitable for rendering.
//
// The input convention: a key ending in "/" is a directory whose value is a
// nested mapping (or nil for an empty directory); the literal key "..." is a
// truncation marker whose value is a summary string such as "+15 more files";
// any other key is a file with a nil value.
package repotree

import (
	"sort"
	"strings"
)

// Structure is the wire form of a directory listing as produced by the
// analyzer and consumed by the web client.
type Structure map[string]any

// ItemType distinguishes folders from files in the normalized tree.
type ItemType string

const (
	TypeFolder ItemType = "folder"
	TypeFile   ItemType = "file"
)

// Item is a single node of the normalized tree. FileCount is set for every
// folder whose value was a nested mapping, including empty ones, so a zero
// count still reaches the client.
type Item struct {
	Name      string   `json:"name"`
	Type      ItemType `json:"type"`
	Children  []Item   `json:"children,omitempty"`
	FileCount *int     `json:"fileCount,omitempty"`
}

// Convert normalizes a Structure into an ordered item list: folders first,
// then files, each group sorted by name. Folder names keep their trailing
// slash; truncation markers become file items carrying the marker string
// verbatim. A folder whose value is neither nil nor a nested mapping is
// treated as an empty folder.
func Convert(structure Structure) []Item {
	items := make([]Item, 0, len(structure))

	for key, value := range structure {
		switch {
		case strings.HasSuffix(key, "/"):
			item := Item{Name: key, Type: TypeFolder}
			if sub, ok := value.(map[string]any); ok {
				children := Convert(sub)
				if len(children) > 0 {
					item.Children = children
				}
				count := CountFiles(sub)
				item.FileCount = &count
			}
			items = append(items, item)
		case key == "...":
			name, _ := value.(string)
			items = append(items, Item{Name: name, Type: TypeFile})
		default:
			items = append(items, Item{Name: key, Type: TypeFile})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type == TypeFolder
		}
		return items[i].Name < items[j].Name
	})

	return items
}

// CountFiles returns the number of files reachable from the structure,
// counting plain file entries as one each and truncation markers by the
// first run of digits in their value ("+15 more files" counts 15). Empty
// directories (nil values) contribute nothing.
func CountFiles(structure Structure) int {
	count := 0

	for key, value := range structure {
		switch {
		case key == "...":
			if s, ok := value.(string); ok {
				count += leadingNumber(s)
			}
		case strings.HasSuffix(key, "/"):
			if sub, ok := value.(map[string]any); ok {
				count += CountFiles(sub)
			}
		default:
			count++
		}
	}

	return count
}

// leadingNumber extracts the first maximal run of decimal digits found
// anywhere in s, or 0 if there is none.
func leadingNumber(s string) int {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return parseDigits(s[start:i])
		}
	}
	if start >= 0 {
		return parseDigits(s[start:])
	}
	return 0
}

func parseDigits(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
