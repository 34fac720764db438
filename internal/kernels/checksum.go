package kernels

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Per-family generator versions.  Bump the tag of any family whose emitted
// source changes; the combined checksum keys every cache entry, so a bump
// invalidates all previously compiled kernels at once.  There is no partial
// invalidation.
var generatorVersions = []string{
	"generator-2",
	"stockham-3",
	"transpose-2",
	"realcomplex-2",
	"realcomplex-even-2",
	"realcomplex-even-transpose-1",
	"bluestein-single-1",
	"bluestein-multi-1",
}

// GeneratorSum returns the checksum identifying the current generator
// logic.  It is a pure function of the version tags above.
func GeneratorSum() string {
	sum := sha256.Sum256([]byte(strings.Join(generatorVersions, ";")))
	return hex.EncodeToString(sum[:])
}
