package cache

import "os"

// Env toggles, mirroring the runtime switches of the device FFT stack.
const (
	EnvCacheDisable = "ALGORTC_CACHE_DISABLE"
	EnvCompileOnly  = "ALGORTC_COMPILE_ONLY"
	EnvCachePath    = "ALGORTC_CACHE_PATH"
)

// Config carries the runtime toggles honored by the cache and the kernel
// construction path.
type Config struct {
	// DisableCache makes every lookup a miss; kernels still compile.
	DisableCache bool

	// CompileOnly compiles and caches kernels without loading them onto
	// a device.  Used to warm caches on build machines with no GPU.
	CompileOnly bool

	// Path overrides the cache directory for the default file store.
	Path string
}

// FromEnv reads the ALGORTC_* toggles.  Any non-empty value enables a
// boolean toggle.
func FromEnv() Config {
	return Config{
		DisableCache: os.Getenv(EnvCacheDisable) != "",
		CompileOnly:  os.Getenv(EnvCompileOnly) != "",
		Path:         os.Getenv(EnvCachePath),
	}
}
