package camera

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// GlobEnumerator lists device nodes matching Pattern (e.g. /dev/video*).
// Nothing is cached: every call reflects devices plugged in at that moment.
type GlobEnumerator struct {
	Pattern string
}

// NewGlobEnumerator creates an enumerator for pattern.
func NewGlobEnumerator(pattern string) *GlobEnumerator {
	return &GlobEnumerator{Pattern: pattern}
}

// List returns the matching devices ordered by numeric index.
// Paths without a trailing decimal index are ignored.
func (g *GlobEnumerator) List() ([]Device, error) {
	matches, err := filepath.Glob(g.Pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", g.Pattern, err)
	}

	devices := make([]Device, 0, len(matches))
	for _, m := range matches {
		idx, ok := deviceIndex(m)
		if !ok {
			continue
		}
		devices = append(devices, Device{Path: m, Index: idx})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Index < devices[j].Index
	})
	return devices, nil
}

// deviceIndex extracts N from a path ending in "videoN".
func deviceIndex(path string) (int, bool) {
	base := filepath.Base(path)
	i := strings.LastIndexFunc(base, func(r rune) bool { return r < '0' || r > '9' })
	digits := base[i+1:]
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
