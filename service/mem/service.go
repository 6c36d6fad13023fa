package mem

import (
	"errors"
	"sync"
)

// PGSIZE is the size of a physical page in bytes.
const PGSIZE = 4096

// ErrOutOfMemory is returned when every frame is in use.
var ErrOutOfMemory = errors.New("mem: out of memory")

// Page is a single physical page.
type Page [PGSIZE]byte

// Service allocates pages from a fixed frame budget.
type Service struct {
	mu       sync.Mutex
	freelist []*Page
	frames   int // frames handed out so far, freed ones included
	limit    int
}

// New creates an allocator managing the given number of frames.
func New(frames int) *Service {
	return &Service{limit: frames}
}

// Kalloc returns a zeroed page or ErrOutOfMemory.
func (s *Service) Kalloc() (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.freelist); n > 0 {
		page := s.freelist[n-1]
		s.freelist = s.freelist[:n-1]
		*page = Page{}
		return page, nil
	}
	if s.frames >= s.limit {
		return nil, ErrOutOfMemory
	}
	s.frames++
	return &Page{}, nil
}

// Kfree returns a page to the free list.
func (s *Service) Kfree(page *Page) {
	if page == nil {
		panic("kfree")
	}
	s.mu.Lock()
	s.freelist = append(s.freelist, page)
	s.mu.Unlock()
}

// Free returns the number of pages that can still be allocated.
func (s *Service) Free() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit - s.frames + len(s.freelist)
}
