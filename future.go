package algortc

import "context"

// Future is the handle to an in-flight kernel compilation.  It is safe
// to share between goroutines; every waiter observes the same result.
// There is no cancellation of the underlying compile — dropping the
// future abandons the result, nothing more.
type Future struct {
	done   chan struct{}
	kernel *Kernel
	code   []byte
	name   string
	err    error
}

func newFuture(name string) *Future {
	return &Future{done: make(chan struct{}), name: name}
}

func resolvedFuture(name string, k *Kernel, code []byte, err error) *Future {
	f := newFuture(name)
	f.resolve(k, code, err)
	return f
}

func (f *Future) resolve(k *Kernel, code []byte, err error) {
	f.kernel = k
	f.code = code
	f.err = err
	close(f.done)
}

// Name returns the kernel name the future resolves, available before
// the compile finishes.
func (f *Future) Name() string { return f.name }

// Wait blocks until the compile finishes or the context is done.  In
// compile-only mode the returned kernel is nil; Code still yields the
// binary.
func (f *Future) Wait(ctx context.Context) (*Kernel, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.kernel, f.err
	}
}

// Code returns the compiled binary.  Valid only after Wait has returned
// without error.
func (f *Future) Code() []byte {
	select {
	case <-f.done:
		return f.code
	default:
		return nil
	}
}
