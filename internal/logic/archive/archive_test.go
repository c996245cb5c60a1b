package archive

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

var when = time.Date(2024, 5, 17, 9, 3, 7, 0, time.Local)

func TestNamer_Dir(t *testing.T) {
	cases := []struct {
		name  string
		style Style
		want  string
	}{
		{"timestamp", Timestamp, filepath.Join("/srv/img", "2024-05-17", strconv.FormatInt(when.Unix(), 10))},
		{"clock", Clock, filepath.Join("/srv/img", "2024-05-17", "09:03:07")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := Namer{Base: "/srv/img", Style: tc.style}
			if got := n.Dir(when); got != tc.want {
				t.Errorf("Dir = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNamer_DistinctSeconds(t *testing.T) {
	n := Namer{Base: "/x"}
	a := n.Dir(when)
	b := n.Dir(when.Add(3 * time.Second))
	if a == b {
		t.Errorf("batches 3s apart share directory %q", a)
	}
}

func TestNamer_CreateIdempotent(t *testing.T) {
	n := Namer{Base: t.TempDir()}

	first, err := n.Create(when)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := n.Create(when)
	if err != nil {
		t.Fatalf("second Create with same id must not fail: %v", err)
	}
	if first != second {
		t.Errorf("Create returned %q then %q", first, second)
	}
	if info, err := os.Stat(first); err != nil || !info.IsDir() {
		t.Errorf("batch directory missing: %v", err)
	}
}

func TestNamer_CreateFailsUnderFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(base, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (Namer{Base: base}).Create(when); err == nil {
		t.Error("expected error when base is a regular file")
	}
}

func TestParseStyle(t *testing.T) {
	for in, want := range map[string]Style{"": Timestamp, "timestamp": Timestamp, "clock": Clock} {
		got, err := ParseStyle(in)
		if err != nil || got != want {
			t.Errorf("ParseStyle(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStyle("uuid"); err == nil {
		t.Error("ParseStyle(uuid): expected error")
	}
}

func TestResolveBase(t *testing.T) {
	if got := ResolveBase("images", "/opt/camshoter"); got != "/opt/camshoter/images" {
		t.Errorf("relative: got %q", got)
	}
	if got := ResolveBase("/data/images", "/opt/camshoter"); got != "/data/images" {
		t.Errorf("absolute: got %q", got)
	}
}

// ---------- Prepare ----------

func TestPrepare_CreatesMissing(t *testing.T) {
	base := filepath.Join(t.TempDir(), "a", "b", "images")
	if err := Prepare(base); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		t.Errorf("base not created: %v", err)
	}
}

func TestPrepare_ExistingWritable(t *testing.T) {
	if err := Prepare(t.TempDir()); err != nil {
		t.Errorf("Prepare on writable dir: %v", err)
	}
}

func TestPrepare_NotADirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(base, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Prepare(base); !errors.Is(err, ErrDirectoryUnwritable) {
		t.Errorf("err = %v, want ErrDirectoryUnwritable", err)
	}
}

func TestPrepare_ReadOnly(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}
	base := t.TempDir()
	if err := os.Chmod(base, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(base, 0o755) })

	if err := Prepare(base); !errors.Is(err, ErrDirectoryUnwritable) {
		t.Errorf("err = %v, want ErrDirectoryUnwritable", err)
	}
}

func TestPrepare_CannotCreate(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}
	parent := t.TempDir()
	if err := os.Chmod(parent, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })

	if err := Prepare(filepath.Join(parent, "images")); !errors.Is(err, ErrDirectoryUnwritable) {
		t.Errorf("err = %v, want ErrDirectoryUnwritable", err)
	}
}
