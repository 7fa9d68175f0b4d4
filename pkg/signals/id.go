package signals

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ID returns the 16-hex-char fingerprint of a signal: the first 64 bits of
// SHA-256 over (type || ":".join(sorted contributing_shas)). Sorting the
// shas before hashing makes the id invariant under input permutation, so
// re-detection over the same commit set is idempotent.
func ID(typ Type, contributingSHAs []string) string {
	sorted := append([]string(nil), contributingSHAs...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(typ))
	h.Write([]byte(":"))
	h.Write([]byte(strings.Join(sorted, ":")))

	sum := h.Sum(nil)

	return hex.EncodeToString(sum[:8])
}

// commonPathPrefix returns the longest directory-segment prefix common to
// every path in paths, or "." if there is none or paths is empty.
func commonPathPrefix(paths []string) string {
	if len(paths) == 0 {
		return "."
	}

	segsOf := func(p string) []string {
		return strings.Split(strings.Trim(p, "/"), "/")
	}

	common := segsOf(paths[0])
	// A single path's own directory (excluding the filename) is its scope.
	if len(common) > 0 {
		common = common[:len(common)-1]
	}

	for _, p := range paths[1:] {
		segs := segsOf(p)
		if len(segs) > 0 {
			segs = segs[:len(segs)-1]
		}

		common = commonPrefixSegs(common, segs)

		if len(common) == 0 {
			return "."
		}
	}

	if len(common) == 0 {
		return "."
	}

	return strings.Join(common, "/")
}

func commonPrefixSegs(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	i := 0
	for i < n && a[i] == b[i] {
		i++
	}

	return a[:i]
}
