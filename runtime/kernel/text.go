package kernel

import (
	"fmt"
	"sync"
)

// Routine is user-mode code. arg is the word at ESP+4 for entry points and
// EAX for fork continuations.
type Routine func(u *User, arg uint32)

const (
	textBase = 0x10
	textStep = 16
)

type symbol struct {
	name string
	fn   Routine
	cont bool // one-shot continuation, arg taken from EAX
}

// Text maps virtual text addresses to routines.
type Text struct {
	mu      sync.Mutex
	next    uint32
	byAddr  map[uint32]*symbol
	byName  map[string]uint32
	pending int
}

// NewText creates an empty text registry.
func NewText() *Text {
	return &Text{next: textBase, byAddr: map[uint32]*symbol{}, byName: map[string]uint32{}}
}

// Link binds fn to name and returns its address. Relinking a name keeps its address.
func (t *Text) Link(name string, fn Routine) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if addr, ok := t.byName[name]; ok {
		t.byAddr[addr].fn = fn
		return addr
	}
	addr := t.alloc()
	t.byAddr[addr] = &symbol{name: name, fn: fn}
	t.byName[name] = addr
	return addr
}

// linkOnce binds a continuation that is consumed by its first resolution.
func (t *Text) linkOnce(fn Routine) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr := t.alloc()
	t.byAddr[addr] = &symbol{name: fmt.Sprintf("cont.%x", addr), fn: fn, cont: true}
	t.pending++
	return addr
}

func (t *Text) alloc() uint32 {
	addr := t.next
	t.next += textStep
	return addr
}

// Lookup returns the address linked for name.
func (t *Text) Lookup(name string) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr, ok := t.byName[name]
	return addr, ok
}

// resolve returns the routine at addr, removing one-shot continuations.
func (t *Text) resolve(addr uint32) (*symbol, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sym, ok := t.byAddr[addr]
	if ok && sym.cont {
		delete(t.byAddr, addr)
		t.pending--
	}
	return sym, ok
}

// unlinkOnce drops an unconsumed continuation at addr.
func (t *Text) unlinkOnce(addr uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sym, ok := t.byAddr[addr]; ok && sym.cont {
		delete(t.byAddr, addr)
		t.pending--
	}
}

// Pending returns the number of continuations not yet resumed.
func (t *Text) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
