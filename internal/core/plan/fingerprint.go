package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// =============================================================================
// Build Fingerprinting
// =============================================================================

// FileDigest identifies one file of a build context: its path relative to
// the context root, its permission bits, and the hex digest of its content.
type FileDigest struct {
	Path   string
	Mode   uint32
	Digest string
}

// DigestBytes returns the hex SHA-256 digest of a byte slice. The shell
// uses this per file so the whole fingerprinting scheme lives in one place.
func DigestBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Fingerprint derives a deterministic identity for a build from its
// inputs. Files are sorted by path before hashing, so directory walk order
// never leaks into the result: identical trees produce identical
// fingerprints, and any changed byte, mode, or path produces a different
// one. Extra strings (dockerfile name, build args) are folded in first,
// in the order given.
//
// Example:
//
//	fp := Fingerprint(digests, "dockerfile=Dockerfile")
//	tag := ImageRef("webapp", "backend", fp)
func Fingerprint(files []FileDigest, extra ...string) string {
	sorted := make([]FileDigest, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	h := sha256.New()
	for _, e := range extra {
		fmt.Fprintf(h, "%s\n", e)
	}
	for _, f := range sorted {
		fmt.Fprintf(h, "%s\x00%o\x00%s\n", f.Path, f.Mode, f.Digest)
	}
	return hex.EncodeToString(h.Sum(nil))
}
