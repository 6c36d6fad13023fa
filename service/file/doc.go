// Package file provides the kernel's file layer: a reference-counted inode cache,
// a global open-file table and whole-file storage backed by an afs URL (memory,
// local disk or any afs-supported scheme). Executable images live here.
package file
