package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// NFILE is the size of the open-file table.
const NFILE = 100

// DefaultBaseURL is an in-memory file system root.
const DefaultBaseURL = "mem://localhost/kproc"

// Open modes.
const (
	OpenRead      = 0x000
	OpenWrite     = 0x001
	OpenReadWrite = 0x002
	OpenCreate    = 0x200
)

var (
	ErrNotFound   = errors.New("file: not found")
	ErrTableFull  = errors.New("file: file table full")
	ErrNotMounted = errors.New("file: file system not mounted")
)

// Inode is an in-memory reference to a file system path.
type Inode struct {
	Path string
	ref  int
}

// File is an open-file table entry.
type File struct {
	ip       *Inode
	ref      int
	Readable bool
	Writable bool
}

// Inode returns the file's inode.
func (f *File) Inode() *Inode { return f.ip }

// Service is the file layer.
type Service struct {
	fs      afs.Service
	baseURL string

	mu      sync.Mutex
	mounted bool
	inodes  map[string]*Inode
	nfile   int
}

// New creates a file service rooted at baseURL.
func New(baseURL string) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Service{fs: afs.New(), baseURL: baseURL, inodes: map[string]*Inode{}}
}

// Init mounts the file system, creating its root when missing. Later calls are no-ops.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return nil
	}
	exists, _ := s.fs.Exists(ctx, s.baseURL)
	if !exists {
		if err := s.fs.Create(ctx, s.baseURL, file.DefaultDirOsMode, true); err != nil {
			return fmt.Errorf("failed to create root %s: %w", s.baseURL, err)
		}
	}
	s.mounted = true
	return nil
}

// Mounted reports whether Init has completed.
func (s *Service) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Namei returns a referenced inode for p. It does not touch storage.
func (s *Service) Namei(p string) *Inode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iget(clean(p))
}

func (s *Service) iget(p string) *Inode {
	ip, ok := s.inodes[p]
	if !ok {
		ip = &Inode{Path: p}
		s.inodes[p] = ip
	}
	ip.ref++
	return ip
}

// Idup increments the reference count of ip.
func (s *Service) Idup(ip *Inode) *Inode {
	s.mu.Lock()
	defer s.mu.Unlock()
	ip.ref++
	return ip
}

// Iput drops a reference to ip.
func (s *Service) Iput(ip *Inode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iput(ip)
}

func (s *Service) iput(ip *Inode) {
	if ip.ref < 1 {
		panic("iput")
	}
	ip.ref--
	if ip.ref == 0 {
		delete(s.inodes, ip.Path)
	}
}

// Refs returns the reference count of the inode cached for p.
func (s *Service) Refs(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ip, ok := s.inodes[clean(p)]; ok {
		return ip.ref
	}
	return 0
}

// Open opens p with the given mode, creating an empty file with OpenCreate.
func (s *Service) Open(ctx context.Context, p string, mode int) (*File, error) {
	if !s.Mounted() {
		return nil, ErrNotMounted
	}
	p = clean(p)
	URL := s.url(p)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", p, err)
	}
	if !exists {
		if mode&OpenCreate == 0 {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(nil)); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nfile >= NFILE {
		return nil, ErrTableFull
	}
	s.nfile++
	return &File{
		ip:       s.iget(p),
		ref:      1,
		Readable: mode&OpenWrite == 0,
		Writable: mode&OpenWrite != 0 || mode&OpenReadWrite != 0,
	}, nil
}

// Dup increments the reference count of f.
func (s *Service) Dup(f *File) *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ref < 1 {
		panic("filedup")
	}
	f.ref++
	return f
}

// Close drops a reference to f, releasing its table entry on the last one.
func (s *Service) Close(f *File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ref < 1 {
		panic("fileclose")
	}
	f.ref--
	if f.ref > 0 {
		return
	}
	s.nfile--
	s.iput(f.ip)
}

// InUse returns the number of open-file table entries in use.
func (s *Service) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nfile
}

// ReadFile returns the content of p.
func (s *Service) ReadFile(ctx context.Context, p string) ([]byte, error) {
	URL := s.url(clean(p))
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", p, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// WriteFile replaces the content of p.
func (s *Service) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := s.fs.Upload(ctx, s.url(clean(p)), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

func (s *Service) url(p string) string {
	return url.Join(s.baseURL, strings.TrimPrefix(p, "/"))
}

func clean(p string) string {
	return path.Clean("/" + p)
}
