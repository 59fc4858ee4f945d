package tabs

import (
	"fmt"
	"slices"
)

// Tab is a node of the tab tree. A group holds children; a leaf is a view.
type Tab struct {
	Name     string `json:"name"`
	Group    bool   `json:"group,omitempty"`
	Children []Tab  `json:"children,omitempty"`
}

func cloneTab(t Tab) Tab {
	if t.Children == nil {
		return t
	}
	kids := make([]Tab, len(t.Children))
	for i, c := range t.Children {
		kids[i] = cloneTab(c)
	}
	t.Children = kids
	return t
}

func clonePath(p []string) []string {
	return slices.Clone(p)
}

// find returns the tab at path. path[0] must name the root.
func (t *Tab) find(path []string) *Tab {
	if len(path) == 0 || path[0] != t.Name {
		return nil
	}
	cur := t
	for _, name := range path[1:] {
		i := cur.child(name)
		if i < 0 {
			return nil
		}
		cur = &cur.Children[i]
	}
	return cur
}

func (t *Tab) child(name string) int {
	return slices.IndexFunc(t.Children, func(c Tab) bool { return c.Name == name })
}

// nextName returns the first "<prefix> n" not used by a child, starting at
// the child count plus one.
func (t *Tab) nextName(prefix string, start int) string {
	for n := start; ; n++ {
		name := fmt.Sprintf("%s %d", prefix, n)
		if t.child(name) < 0 {
			return name
		}
	}
}

// hasPrefix reports whether p equals prefix or descends from it.
func hasPrefix(p, prefix []string) bool {
	return len(p) >= len(prefix) && slices.Equal(p[:len(prefix)], prefix)
}

// rebase replaces the prefix old of p with repl.
func rebase(p, old, repl []string) []string {
	out := make([]string, 0, len(repl)+len(p)-len(old))
	out = append(out, repl...)
	return append(out, p[len(old):]...)
}
