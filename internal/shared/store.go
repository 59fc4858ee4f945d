package shared

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/cowork/internal/ir"
)

// ErrContainerOwned is returned when a container name is claimed by a second
// owner, or re-claimed with a different kind.
var ErrContainerOwned = errors.New("container owned by another module")

// Kind is the container shape.
type Kind string

const (
	KindMap   Kind = "map"
	KindArray Kind = "array"
)

// Op is the kind of write a Change records.
type Op string

const (
	OpSet    Op = "set"
	OpDelete Op = "delete"
	OpInsert Op = "insert"
)

// Change describes one write to a container.
// Key is set for maps, Index for arrays.
type Change struct {
	Container string `json:"container"`
	Kind      Kind   `json:"kind"`
	Op        Op     `json:"op"`
	Key       string `json:"key,omitempty"`
	Index     int    `json:"index,omitempty"`
}

type container interface {
	kind() Kind
	snapshot() (ir.IRValue, error)
	observers() *observerSet
}

// Doc is a set of named containers plus the presence set of connected users.
//
// Thread-safety: all methods are safe for concurrent use.
type Doc struct {
	mu         sync.Mutex
	containers map[string]container
	owners     map[string]string
	names      []string // claim order

	txMu sync.Mutex // held by the outermost transaction

	pendMu  sync.Mutex
	inTx    bool
	pending []Change

	all       observerSet
	awareness *Awareness
}

// NewDoc creates an empty document.
func NewDoc() *Doc {
	return &Doc{
		containers: make(map[string]container),
		owners:     make(map[string]string),
		awareness:  NewAwareness(),
	}
}

// Awareness returns the live presence set.
func (d *Doc) Awareness() *Awareness {
	return d.awareness
}

// Names returns container names in claim order.
func (d *Doc) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.names)
}

// Owner returns the owner of a container name.
func (d *Doc) Owner(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	owner, ok := d.owners[name]
	return owner, ok
}

// Observe registers fn for every change batch in the document.
// The returned func unregisters it.
func (d *Doc) Observe(fn func([]Change)) func() {
	return d.all.add(fn)
}

// Namespace returns the claim capability for one owner.
func (d *Doc) Namespace(owner string) *Namespace {
	return &Namespace{doc: d, owner: owner}
}

type txKey struct{ doc *Doc }

// Transact runs fn as one write scope. Observers receive every change made
// during the scope in a single batch after the outermost scope closes.
// Nested calls (detected through ctx) join the enclosing scope.
//
// Transactions are serialized per document. There is no rollback: writes
// made before fn fails stay applied, matching a convergent store.
func (d *Doc) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{d}) != nil {
		return fn(ctx)
	}

	d.txMu.Lock()
	d.pendMu.Lock()
	d.inTx = true
	d.pendMu.Unlock()

	var changes []Change
	defer func() {
		d.pendMu.Lock()
		d.inTx = false
		changes, d.pending = d.pending, nil
		d.pendMu.Unlock()
		d.txMu.Unlock()
		d.deliver(changes)
	}()

	return fn(context.WithValue(ctx, txKey{d}, true))
}

// InTransaction reports whether ctx carries an open scope of this document.
func (d *Doc) InTransaction(ctx context.Context) bool {
	return ctx.Value(txKey{d}) != nil
}

func (d *Doc) emit(c Change) {
	d.pendMu.Lock()
	if d.inTx {
		d.pending = append(d.pending, c)
		d.pendMu.Unlock()
		return
	}
	d.pendMu.Unlock()
	d.deliver([]Change{c})
}

func (d *Doc) deliver(changes []Change) {
	if len(changes) == 0 {
		return
	}

	byName := make(map[string][]Change)
	var order []string
	for _, c := range changes {
		if _, ok := byName[c.Container]; !ok {
			order = append(order, c.Container)
		}
		byName[c.Container] = append(byName[c.Container], c)
	}

	d.mu.Lock()
	targets := make([]container, 0, len(order))
	for _, name := range order {
		targets = append(targets, d.containers[name])
	}
	d.mu.Unlock()

	for i, c := range targets {
		if c == nil {
			continue
		}
		c.observers().notify(byName[order[i]])
	}
	d.all.notify(changes)
}

// Snapshot returns the IR form of every container keyed by name.
func (d *Doc) Snapshot() (ir.IRObject, error) {
	return d.SnapshotOf(d.Names()...)
}

// SnapshotOf returns the IR form of the named containers. Unknown names are
// omitted.
func (d *Doc) SnapshotOf(names ...string) (ir.IRObject, error) {
	d.mu.Lock()
	targets := make(map[string]container, len(names))
	for _, name := range names {
		if c, ok := d.containers[name]; ok {
			targets[name] = c
		}
	}
	d.mu.Unlock()

	out := make(ir.IRObject, len(targets))
	for name, c := range targets {
		v, err := c.snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Digest returns the state digest of the whole document.
func (d *Doc) Digest() (string, error) {
	snap, err := d.Snapshot()
	if err != nil {
		return "", err
	}
	return ir.StateDigest(snap)
}

// Namespace is the capability through which one owner claims containers.
// Only the module holding a Namespace can obtain handles to its containers.
type Namespace struct {
	doc   *Doc
	owner string
}

// Owner returns the owner name.
func (ns *Namespace) Owner() string {
	return ns.owner
}

// Doc returns the document the namespace claims from.
func (ns *Namespace) Doc() *Doc {
	return ns.doc
}

// claim returns the existing container for name, or stores the one built by
// create. Re-claiming by the same owner returns the same container.
func (ns *Namespace) claim(name string, k Kind, create func() container) (container, error) {
	d := ns.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, ok := d.owners[name]; ok {
		if owner != ns.owner {
			return nil, fmt.Errorf("claim %q by %q: %w (owner %q)", name, ns.owner, ErrContainerOwned, owner)
		}
		c := d.containers[name]
		if c.kind() != k {
			return nil, fmt.Errorf("claim %q as %s: %w (already a %s)", name, k, ErrContainerOwned, c.kind())
		}
		return c, nil
	}

	c := create()
	d.containers[name] = c
	d.owners[name] = ns.owner
	d.names = append(d.names, name)
	return c, nil
}

// ClaimMap claims a map container. clone deep-copies a value; nil means
// values are plain copies (no shared slices or maps).
func ClaimMap[T any](ns *Namespace, name string, clone func(T) T) (*Map[T], error) {
	c, err := ns.claim(name, KindMap, func() container {
		return newMap(ns.doc, name, clone)
	})
	if err != nil {
		return nil, err
	}
	m, ok := c.(*Map[T])
	if !ok {
		return nil, fmt.Errorf("claim %q: %w (value type mismatch)", name, ErrContainerOwned)
	}
	return m, nil
}

// ClaimArray claims an array container. clone follows ClaimMap.
func ClaimArray[T any](ns *Namespace, name string, clone func(T) T) (*Array[T], error) {
	c, err := ns.claim(name, KindArray, func() container {
		return newArray(ns.doc, name, clone)
	})
	if err != nil {
		return nil, err
	}
	a, ok := c.(*Array[T])
	if !ok {
		return nil, fmt.Errorf("claim %q: %w (value type mismatch)", name, ErrContainerOwned)
	}
	return a, nil
}

// observerSet is an ordered registry of change callbacks.
type observerSet struct {
	mu   sync.Mutex
	next int
	fns  map[int]func([]Change)
}

func (o *observerSet) add(fn func([]Change)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func([]Change))
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

func (o *observerSet) notify(changes []Change) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func([]Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(slices.Clone(changes))
	}
}

func identity[T any](v T) T { return v }
