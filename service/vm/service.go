package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/viant/kproc/service/mem"
)

// KERNBASE is the first virtual address above user space.
const KERNBASE = uint32(0x80000000)

var (
	// ErrNoMemory is returned when a page cannot be allocated.
	ErrNoMemory = errors.New("vm: out of memory")
	// ErrBadAddress is returned for copies touching unmapped or kernel-only pages.
	ErrBadAddress = errors.New("vm: bad address")
)

// Service is the address-space manager contract.
type Service interface {
	// Setup creates an empty user address space.
	Setup() (*AddressSpace, error)
	// Clone copies the first sz bytes of as into a new address space.
	Clone(as *AddressSpace, sz uint32) (*AddressSpace, error)
	// Grow maps pages to grow the space from oldSz to newSz, returning the new size.
	Grow(as *AddressSpace, oldSz, newSz uint32) (uint32, error)
	// Shrink unmaps pages to shrink the space from oldSz to newSz, returning the new size.
	Shrink(as *AddressSpace, oldSz, newSz uint32) (uint32, error)
	// Activate installs as on the given cpu; nil switches to the kernel-only space.
	Activate(cpu int, as *AddressSpace)
	// Free releases every page of as.
	Free(as *AddressSpace)
	// ClearUser makes the page at va inaccessible from user mode (stack guard).
	ClearUser(as *AddressSpace, va uint32)
	// CopyOut writes words to user memory starting at va.
	CopyOut(as *AddressSpace, va uint32, words ...uint32) error
	// CopyIn reads the word at va from user memory.
	CopyIn(as *AddressSpace, va uint32) (uint32, error)
}

type pte struct {
	page *mem.Page
	user bool
}

// AddressSpace is a user page table.
type AddressSpace struct {
	mu    sync.Mutex
	pages map[uint32]*pte
}

// Pages returns the number of mapped pages.
func (a *AddressSpace) Pages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pages)
}

// Manager implements Service on top of the physical page allocator.
type Manager struct {
	mem    *mem.Service
	mu     sync.Mutex
	active map[int]*AddressSpace
}

var _ Service = (*Manager)(nil)

// New creates an address-space manager.
func New(memory *mem.Service) *Manager {
	return &Manager{mem: memory, active: map[int]*AddressSpace{}}
}

// PGROUNDUP rounds sz up to a page boundary.
func PGROUNDUP(sz uint32) uint32 {
	return (sz + mem.PGSIZE - 1) &^ (mem.PGSIZE - 1)
}

// PGROUNDDOWN rounds a down to a page boundary.
func PGROUNDDOWN(a uint32) uint32 {
	return a &^ (mem.PGSIZE - 1)
}

func (m *Manager) Setup() (*AddressSpace, error) {
	return &AddressSpace{pages: map[uint32]*pte{}}, nil
}

func (m *Manager) Grow(as *AddressSpace, oldSz, newSz uint32) (uint32, error) {
	if newSz >= KERNBASE {
		return 0, fmt.Errorf("allocuvm %#x: %w", newSz, ErrNoMemory)
	}
	if newSz < oldSz {
		return oldSz, nil
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	for a := PGROUNDUP(oldSz); a < newSz; a += mem.PGSIZE {
		page, err := m.mem.Kalloc()
		if err != nil {
			m.dealloc(as, newSz, oldSz)
			return 0, fmt.Errorf("allocuvm out of memory: %w", ErrNoMemory)
		}
		as.pages[a] = &pte{page: page, user: true}
	}
	return newSz, nil
}

func (m *Manager) Shrink(as *AddressSpace, oldSz, newSz uint32) (uint32, error) {
	if newSz >= oldSz {
		return oldSz, nil
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	m.dealloc(as, oldSz, newSz)
	return newSz, nil
}

// dealloc unmaps [PGROUNDUP(newSz), oldSz); as.mu must be held.
func (m *Manager) dealloc(as *AddressSpace, oldSz, newSz uint32) {
	for a := PGROUNDUP(newSz); a < oldSz; a += mem.PGSIZE {
		if entry, ok := as.pages[a]; ok {
			m.mem.Kfree(entry.page)
			delete(as.pages, a)
		}
	}
}

func (m *Manager) Clone(as *AddressSpace, sz uint32) (*AddressSpace, error) {
	ret, _ := m.Setup()
	as.mu.Lock()
	defer as.mu.Unlock()
	for a := uint32(0); a < sz; a += mem.PGSIZE {
		entry, ok := as.pages[a]
		if !ok {
			panic("copyuvm: page not present")
		}
		page, err := m.mem.Kalloc()
		if err != nil {
			m.Free(ret)
			return nil, fmt.Errorf("copyuvm: %w", ErrNoMemory)
		}
		*page = *entry.page
		ret.pages[a] = &pte{page: page, user: entry.user}
	}
	return ret, nil
}

func (m *Manager) Free(as *AddressSpace) {
	if as == nil {
		panic("freevm: no pgdir")
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	for a, entry := range as.pages {
		m.mem.Kfree(entry.page)
		delete(as.pages, a)
	}
}

func (m *Manager) ClearUser(as *AddressSpace, va uint32) {
	as.mu.Lock()
	defer as.mu.Unlock()
	entry, ok := as.pages[PGROUNDDOWN(va)]
	if !ok {
		panic("clearpteu")
	}
	entry.user = false
}

func (m *Manager) Activate(cpu int, as *AddressSpace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if as == nil {
		delete(m.active, cpu)
		return
	}
	m.active[cpu] = as
}

// Active returns the address space installed on cpu, nil for the kernel space.
func (m *Manager) Active(cpu int) *AddressSpace {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[cpu]
}

func (m *Manager) CopyOut(as *AddressSpace, va uint32, words ...uint32) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	for i, w := range words {
		buf, err := as.word(va + uint32(i)*4)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf, w)
	}
	return nil
}

func (m *Manager) CopyIn(as *AddressSpace, va uint32) (uint32, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	buf, err := as.word(va)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// word returns the 4 bytes at va; words never straddle pages since va is 4-aligned.
func (a *AddressSpace) word(va uint32) ([]byte, error) {
	if va%4 != 0 || va >= KERNBASE {
		return nil, fmt.Errorf("%#x: %w", va, ErrBadAddress)
	}
	entry, ok := a.pages[PGROUNDDOWN(va)]
	if !ok || !entry.user {
		return nil, fmt.Errorf("%#x: %w", va, ErrBadAddress)
	}
	off := va - PGROUNDDOWN(va)
	return entry.page[off : off+4], nil
}
