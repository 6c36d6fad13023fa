// Package vm implements the user address-space manager consumed by the kernel:
// creating, cloning, growing, shrinking, activating and freeing page-granular
// address spaces, plus word-sized copies into and out of user memory.
package vm
