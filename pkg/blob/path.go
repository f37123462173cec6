package blob

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/latticechat/roomengine/pkg/rerr"
)

// normalizePath enforces spec.md §4.5's path policy: a leading "/", UTF-8
// components, no ".." traversal. It also collapses "." segments and
// duplicate slashes the way path.Clean does, so two spellings of the same
// location always resolve to the same drive-metadata key.
func normalizePath(p string) (string, error) {
	if !utf8.ValidString(p) {
		return "", rerr.Invalid("blob.normalizePath", fmt.Errorf("path is not valid UTF-8"))
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", rerr.Invalid("blob.normalizePath", fmt.Errorf("path %q escapes its root", p))
		}
	}
	clean := path.Clean(p)
	if clean == "/" {
		return "", rerr.Invalid("blob.normalizePath", fmt.Errorf("path %q has no basename", p))
	}
	return clean, nil
}

// putUniquePath answers spec.md §4.5's upload policy: "uploads append a
// uniqueness suffix to avoid collisions when the same file is shared
// multiple times." exists reports whether candidate is already occupied;
// seed supplies the timestamp/random bits since this package never calls
// time.Now or crypto/rand directly (ambient-clock and -entropy access are
// owned by the caller, keeping putUniquePath deterministic under test).
func putUniquePath(candidate string, seed string, exists func(string) (bool, error)) (string, error) {
	occupied, err := exists(candidate)
	if err != nil {
		return "", err
	}
	if !occupied {
		return candidate, nil
	}

	dir, base := path.Split(candidate)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for attempt := 0; ; attempt++ {
		suffix := seed
		if attempt > 0 {
			suffix = seed + "_" + strconv.Itoa(attempt)
		}
		candidate := dir + stem + suffix + ext
		occupied, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !occupied {
			return candidate, nil
		}
	}
}
