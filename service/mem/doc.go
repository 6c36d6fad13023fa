// Package mem provides the physical page allocator backing kernel stacks and
// user address spaces. It hands out fixed-size pages from a bounded pool of
// frames and recycles freed pages through a free list.
package mem
