package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"rover-1", "rover-1"},
		{"rover 1/left", "rover_1_left"},
		{"../../etc/passwd", "etc_passwd"},
		{"path.png", "path.png"},
		{"__hidden__", "hidden"},
		{"", "unknown"},
		{"///", "unknown"},
		{"räder", "r_der"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 500))
	if len(got) != maxFilenameLen {
		t.Errorf("len = %d, want %d", len(got), maxFilenameLen)
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(dir, "escape")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(dir, "plot.png"), false},
		{"nested new file", filepath.Join(dir, "plots", "run", "plot.png"), false},
		{"parent traversal", filepath.Join(dir, "..", "plot.png"), true},
		{"absolute elsewhere", filepath.Join(outside, "plot.png"), true},
		{"through symlink", filepath.Join(dir, "escape", "plot.png"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
