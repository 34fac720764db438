package kernels

import (
	"os"
	"path/filepath"
	"sync"

	gen "github.com/cwbudde/algo-rtc/internal/generator"
)

var (
	harnessMu  sync.Mutex
	harnessDir string
)

// SetHarnessDir enables standalone harness emission: every kernel
// rendered afterwards also writes <name>_harness.cpp to dir.  An empty
// dir disables emission.  Development aid only.
func SetHarnessDir(dir string) {
	harnessMu.Lock()
	defer harnessMu.Unlock()
	harnessDir = dir
}

func writeHarness(fn *gen.Function, src string) error {
	harnessMu.Lock()
	dir := harnessDir
	harnessMu.Unlock()
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, fn.Name+"_harness.cpp")
	return os.WriteFile(path, []byte(gen.Harness(fn, src)), 0o644)
}
