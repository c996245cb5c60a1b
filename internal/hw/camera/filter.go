package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsNamer reads device names from <Root>/video<N>/name.
type SysfsNamer struct {
	Root string // usually /sys/class/video4linux
}

// Name returns the trimmed hardware name of dev.
func (s SysfsNamer) Name(dev Device) (string, error) {
	path := filepath.Join(s.Root, "video"+strconv.Itoa(dev.Index), "name")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", dev.Path, ErrNameUnresolvable, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Filter excludes devices whose name contains a blacklisted substring.
type Filter struct {
	namer     Namer
	blacklist []string
}

// NewFilter creates a filter. Empty blacklist entries are ignored.
func NewFilter(namer Namer, blacklist []string) *Filter {
	var bl []string
	for _, s := range blacklist {
		if s != "" {
			bl = append(bl, s)
		}
	}
	return &Filter{namer: namer, blacklist: bl}
}

// Check resolves dev's name and returns it when the device may be captured.
// It returns ErrNameUnresolvable when the name can't be read and
// ErrBlacklisted when the name matches the blacklist.
func (f *Filter) Check(dev Device) (string, error) {
	name, err := f.namer.Name(dev)
	if err != nil {
		return "", err
	}
	for _, s := range f.blacklist {
		if strings.Contains(name, s) {
			return name, fmt.Errorf("%s (%q contains %q): %w", dev.Path, name, s, ErrBlacklisted)
		}
	}
	return name, nil
}
