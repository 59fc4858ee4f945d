// Package tabs is the tab layout module: a tree of named tabs plus one
// active tab pointer per user.
//
// Paths are name lists from the root, e.g. ["root", "Design", "Sketch"].
// Pointers are compared by value, never by identity.
package tabs

import (
	"context"
	"slices"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/module"
	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/shared"
)

// Module and container names.
const (
	Name            = "tabs"
	TreeContainer   = "tabs.tree"
	ActiveContainer = "tabs.active"
)

// RootName names the root group, the first element of every path.
const RootName = "root"

// treeKey is the single key under which the whole tree is stored, so every
// edit replaces the tree as one value.
const treeKey = RootName

// Event types handled by the tabs reducer.
const (
	EventAdd            = "tabs:add"
	EventDelete         = "tabs:delete"
	EventRename         = "tabs:rename"
	EventConvertToGroup = "tabs:convert-to-group"
	EventActivate       = "tabs:activate"
)

// State holds the tabs containers.
type State struct {
	Tree   *shared.Map[Tab]
	Active *shared.Map[[]string]
}

// Claim claims the tabs containers in ns and seeds an empty root.
func Claim(ns *shared.Namespace) (*State, error) {
	tree, err := shared.ClaimMap(ns, TreeContainer, cloneTab)
	if err != nil {
		return nil, err
	}
	active, err := shared.ClaimMap(ns, ActiveContainer, clonePath)
	if err != nil {
		return nil, err
	}
	tree.Update(treeKey, func(t Tab, ok bool) (Tab, bool) {
		return Tab{Name: RootName, Group: true}, !ok
	})
	return &State{Tree: tree, Active: active}, nil
}

// Module returns the tabs module definition.
func Module() module.Definition {
	return module.Definition{
		Name: Name,
		Setup: func(s *module.Setup) (any, error) {
			st, err := Claim(s.Namespace())
			if err != nil {
				return nil, err
			}
			s.Register(NewReducer(st))
			return nil, nil
		},
	}
}

// NewReducer builds the tabs reducer over st.
func NewReducer(st *State) *reducer.Table {
	return reducer.NewTable(Name).
		On(EventAdd, st.add).
		On(EventDelete, st.delete).
		On(EventRename, st.rename).
		On(EventConvertToGroup, st.convertToGroup).
		On(EventActivate, st.activate)
}

// Root returns a copy of the tree.
func (s *State) Root() Tab {
	t, _ := s.Tree.Get(treeKey)
	return t
}

// ActivePath returns the user's active tab path.
func (s *State) ActivePath(userID string) ([]string, bool) {
	return s.Active.Get(userID)
}

// repoint rewrites every active pointer equal to or below old so it sits
// below repl instead.
func (s *State) repoint(old, repl []string) {
	for _, user := range s.Active.Keys() {
		s.Active.Update(user, func(p []string, ok bool) ([]string, bool) {
			if !ok || !hasPrefix(p, old) {
				return p, false
			}
			return rebase(p, old, repl), true
		})
	}
}

// add appends a leaf named "New {n}" under parent (default root) and
// activates it for the acting user.
func (s *State) add(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	parent, ok := ev.Fields.Strings("parent")
	if !ok || len(parent) == 0 {
		parent = []string{RootName}
	}

	var created []string
	s.Tree.Update(treeKey, func(root Tab, ok bool) (Tab, bool) {
		if !ok {
			return root, false
		}
		p := root.find(parent)
		if p == nil || !p.Group {
			return root, false
		}
		name := ev.Fields.StringOr("name", "")
		if name == "" || p.child(name) >= 0 {
			name = p.nextName("New", len(p.Children)+1)
		}
		p.Children = append(p.Children, Tab{Name: name})
		created = append(clonePath(parent), name)
		return root, true
	})

	if created != nil && rc.UserID != "" {
		s.Active.Set(rc.UserID, created)
	}
	return nil
}

// delete removes the tab at path. Users whose pointer was at or below it
// move to the fallback: the previous sibling, else the next sibling, else
// the parent.
func (s *State) delete(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	path, err := reducer.Path(ev, "path")
	if err != nil {
		return err
	}
	if len(path) < 2 {
		return nil // the root cannot be deleted
	}
	parentPath := path[:len(path)-1]

	var fallback []string
	s.Tree.Update(treeKey, func(root Tab, ok bool) (Tab, bool) {
		if !ok {
			return root, false
		}
		p := root.find(parentPath)
		if p == nil {
			return root, false
		}
		i := p.child(path[len(path)-1])
		if i < 0 {
			return root, false
		}
		p.Children = slices.Delete(p.Children, i, i+1)

		fallback = clonePath(parentPath)
		switch {
		case i > 0:
			fallback = append(fallback, p.Children[i-1].Name)
		case len(p.Children) > 0:
			fallback = append(fallback, p.Children[0].Name)
		}
		return root, true
	})

	if fallback == nil {
		return nil
	}
	for _, user := range s.Active.Keys() {
		s.Active.Update(user, func(p []string, ok bool) ([]string, bool) {
			if !ok || !hasPrefix(p, path) {
				return p, false
			}
			return clonePath(fallback), true
		})
	}
	return nil
}

// rename renames the tab at path. Active pointers at or below the old path
// follow the rename. A name already used by a sibling is refused.
func (s *State) rename(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	path, err := reducer.Path(ev, "path")
	if err != nil {
		return err
	}
	name, err := reducer.String(ev, "name")
	if err != nil {
		return err
	}
	if len(path) < 2 {
		return nil
	}
	parentPath := path[:len(path)-1]
	renamed := append(clonePath(parentPath), name)

	done := false
	s.Tree.Update(treeKey, func(root Tab, ok bool) (Tab, bool) {
		if !ok {
			return root, false
		}
		p := root.find(parentPath)
		if p == nil || p.child(name) >= 0 {
			return root, false
		}
		i := p.child(path[len(path)-1])
		if i < 0 {
			return root, false
		}
		p.Children[i].Name = name
		done = true
		return root, true
	})

	if done {
		s.repoint(path, renamed)
	}
	return nil
}

// convertToGroup wraps the leaf at path in a new group named "Group {n}"
// that takes the leaf's place. Pointers at the leaf move inside the group.
func (s *State) convertToGroup(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	path, err := reducer.Path(ev, "path")
	if err != nil {
		return err
	}
	if len(path) < 2 {
		return nil
	}
	parentPath := path[:len(path)-1]

	var groupPath []string
	s.Tree.Update(treeKey, func(root Tab, ok bool) (Tab, bool) {
		if !ok {
			return root, false
		}
		p := root.find(parentPath)
		if p == nil {
			return root, false
		}
		i := p.child(path[len(path)-1])
		if i < 0 || p.Children[i].Group {
			return root, false
		}

		groups := 0
		for _, c := range p.Children {
			if c.Group {
				groups++
			}
		}
		name := ev.Fields.StringOr("name", "")
		if name == "" || p.child(name) >= 0 {
			name = p.nextName("Group", groups+1)
		}

		leaf := p.Children[i]
		p.Children[i] = Tab{Name: name, Group: true, Children: []Tab{leaf}}
		groupPath = append(clonePath(parentPath), name)
		return root, true
	})

	if groupPath != nil {
		s.repoint(path, append(groupPath, path[len(path)-1]))
	}
	return nil
}

// activate points the acting user at an existing tab.
func (s *State) activate(_ context.Context, ev ir.Event, rc ir.RequestContext) error {
	path, err := reducer.Path(ev, "path")
	if err != nil {
		return err
	}
	root := s.Root()
	if root.find(path) == nil {
		return nil
	}
	s.Active.Set(rc.UserID, path)
	return nil
}
