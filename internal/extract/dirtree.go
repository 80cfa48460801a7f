package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nexo-app/nexo/pkg/repotree"
)

const (
	maxTreeDepth       = 4
	maxEntriesPerLevel = 30
)

// DirectoryNode is a mutable tree built while walking the archive. ToMap
// flattens it into the suffix-encoded structure the API responds with.
type DirectoryNode struct {
	name     string
	children map[string]*DirectoryNode
	isFile   bool
}

// NewDirectoryNode creates an empty directory node.
func NewDirectoryNode(name string) *DirectoryNode {
	return &DirectoryNode{name: name, children: map[string]*DirectoryNode{}}
}

// Add inserts a file path, creating intermediate directories as needed.
func (n *DirectoryNode) Add(filepath string) {
	parts := strings.Split(filepath, "/")
	node := n
	for i, part := range parts {
		if part == "" {
			continue
		}
		child, ok := node.children[part]
		if !ok {
			child = NewDirectoryNode(part)
			node.children[part] = child
		}
		if i == len(parts)-1 {
			child.isFile = true
		}
		node = child
	}
}

// ToMap converts the tree into the wire structure: directory keys carry a
// trailing "/", deep subtrees collapse to an item count and levels are
// capped with a "+N more files" marker. Directories sort before files.
func (n *DirectoryNode) ToMap() repotree.Structure {
	return n.toMap(0)
}

func (n *DirectoryNode) toMap(depth int) repotree.Structure {
	result := repotree.Structure{}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := n.children[names[i]], n.children[names[j]]
		if a.isFile != b.isFile {
			return !a.isFile
		}
		return names[i] < names[j]
	})

	shown := 0
	omitted := 0
	for _, name := range names {
		child := n.children[name]
		if shown >= maxEntriesPerLevel {
			omitted++
			continue
		}
		if child.isFile {
			result[name] = nil
			shown++
			continue
		}
		if depth+1 >= maxTreeDepth {
			// Collapsed subtrees report their immediate entry count.
			if len(child.children) > 0 {
				result[name+"/"] = repotree.Structure{
					"...": fmt.Sprintf("%d items", len(child.children)),
				}
			} else {
				result[name+"/"] = repotree.Structure{}
			}
		} else {
			result[name+"/"] = child.toMap(depth + 1)
		}
		shown++
	}
	if omitted > 0 {
		result["..."] = fmt.Sprintf("+%d more files", omitted)
	}
	return result
}
