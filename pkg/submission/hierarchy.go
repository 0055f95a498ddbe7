package submission

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrParentNotFound = errors.New("parent key is not in hierarchy")
	ErrDuplicateKey   = errors.New("key is already in hierarchy")
)

// Hierarchy is the parent-to-children tree of keys.
//
// The functions in this file never modify their arguments.
// Each of them returns a fresh tree when the result differs from the input.
type Hierarchy map[Key]Hierarchy

// NewHierarchy returns a tree which has only the root.
func NewHierarchy() Hierarchy {
	return Hierarchy{Root: Hierarchy{}}
}

// Clone returns a deep copy of the tree.
func (h Hierarchy) Clone() Hierarchy {
	if h == nil {
		return nil
	}
	c := make(Hierarchy, len(h))
	for k, children := range h {
		c[k] = children.Clone()
		if c[k] == nil {
			c[k] = Hierarchy{}
		}
	}
	return c
}

// Contains reports whether key is found anywhere in the tree.
func (h Hierarchy) Contains(key Key) bool {
	_, ok := h.SubtreeOf(key)
	return ok
}

// Insert adds key as a new leaf under parent.
//
// # Returns
//
// - Hierarchy: new tree.
//
// - error: ErrParentNotFound when parent is not in the tree,
// ErrDuplicateKey when key is already in the tree.
func (h Hierarchy) Insert(key Key, parent Key) (Hierarchy, error) {
	if h.Contains(key) {
		return h, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	c := h.Clone()
	node, ok := c.SubtreeOf(parent)
	if !ok {
		return h, fmt.Errorf("%w: %s (inserting %s)", ErrParentNotFound, parent, key)
	}
	node[key] = Hierarchy{}
	return c, nil
}

// Remove deletes key and its descendants from the tree.
//
// If key is not found, it returns a copy of the tree.
func (h Hierarchy) Remove(key Key) Hierarchy {
	c := h.Clone()
	c.remove(key)
	return c
}

func (h Hierarchy) remove(key Key) bool {
	if _, ok := h[key]; ok {
		delete(h, key)
		return true
	}
	for _, children := range h {
		if children.remove(key) {
			return true
		}
	}
	return false
}

// SubtreeOf returns the children map of key.
//
// The returned tree shares its storage with h; clone it before modifying.
func (h Hierarchy) SubtreeOf(key Key) (Hierarchy, bool) {
	if children, ok := h[key]; ok {
		return children, true
	}
	for _, children := range h {
		if found, ok := children.SubtreeOf(key); ok {
			return found, true
		}
	}
	return nil, false
}

// ParentOf returns the immediate parent of key.
//
// The second return value is false when key is a top-level key (root) or absent.
func (h Hierarchy) ParentOf(key Key) (Key, bool) {
	for k, children := range h {
		if _, ok := children[key]; ok {
			return k, true
		}
		if p, ok := children.ParentOf(key); ok {
			return p, true
		}
	}
	return Key{}, false
}

// Flatten returns every key in the tree, ordered deterministically.
func (h Hierarchy) Flatten() []Key {
	keys := []Key{}
	for k, children := range h {
		keys = append(keys, k)
		keys = append(keys, children.Flatten()...)
	}
	sortKeys(keys)
	return keys
}

// Children returns the direct children of key, ordered deterministically.
func (h Hierarchy) Children(key Key) []Key {
	node, ok := h.SubtreeOf(key)
	if !ok {
		return nil
	}
	keys := make([]Key, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// placeholders first in numerical order, then persisted ones in lexical order.
func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.IsPlaceholder() != b.IsPlaceholder() {
			return a.IsPlaceholder()
		}
		if a.IsPlaceholder() {
			return a.Number() < b.Number()
		}
		return a.ID() < b.ID()
	})
}
