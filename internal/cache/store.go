// Package cache holds compiled kernel binaries keyed on kernel identity,
// so every distinct kernel is compiled at most once per generator
// version and device architecture.
package cache

import "errors"

var (
	ErrNotFound = errors.New("algortc/cache: entry not found")
	ErrClosed   = errors.New("algortc/cache: store closed")
)

// Key identifies one compiled kernel: the kernel name (which encodes the
// full specialization), the device architecture it was compiled for, and
// the generator checksum at compile time.  Any generator change moves the
// checksum and orphans old entries.
type Key struct {
	Name     string
	Arch     string
	Checksum string
}

func (k Key) String() string {
	return k.Name + "-" + k.Arch + "-" + k.Checksum
}

// Store is a persistent blob store for compiled kernels.  Get returns
// ErrNotFound for absent keys; any other error is treated by the cache
// as a recoverable miss.  Implementations must be safe for concurrent
// use.
type Store interface {
	Get(key Key) ([]byte, error)
	Put(key Key, code []byte) error
	Close() error
}
