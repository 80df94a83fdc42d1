package profiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/renshaw/taskwire/internal/apperr"
	"github.com/renshaw/taskwire/internal/checksum"
)

// Layout of the profiles tree, shared with the watch engine.
const (
	ProfilesDir   = "employee_profiles"
	DashboardFile = "taskdashboard.json"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the profiles root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("profiles: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("profiles: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("profiles: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute profiles root path.
func (f *FS) Root() string {
	return f.root
}

// DashboardPath returns the relative dashboard path for an identity.
func DashboardPath(identity string) string {
	return filepath.Join(ProfilesDir, identity, DashboardFile)
}

// IdentityFromPath extracts the identity from a dashboard path. The path
// must end with employee_profiles/<identity>/taskdashboard.json; anything
// else returns ok=false and the event is dropped by the caller.
func IdentityFromPath(path string) (string, bool) {
	clean := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(clean, "/")
	if len(parts) < 3 {
		return "", false
	}
	if parts[len(parts)-1] != DashboardFile {
		return "", false
	}
	if parts[len(parts)-3] != ProfilesDir {
		return "", false
	}
	id := parts[len(parts)-2]
	if id == "" {
		return "", false
	}
	return id, true
}

// safePath resolves a relative path against the root and rejects any
// result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("profiles: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("profiles: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("profiles: path escapes root: %s", rel)
	}
	return abs, nil
}

// List walks the profiles tree and returns metadata for every dashboard file.
func (f *FS) List() ([]DashboardMeta, error) {
	base := filepath.Join(f.root, ProfilesDir)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}
	var out []DashboardMeta
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != DashboardFile {
			return nil
		}
		rel, relErr := filepath.Rel(f.root, p)
		if relErr != nil {
			return relErr
		}
		id, ok := IdentityFromPath(rel)
		if !ok {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return readErr
		}
		out = append(out, DashboardMeta{
			Identity:  id,
			Path:      rel,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("profiles: list: %w", err)
	}
	return out, nil
}

// Read returns the dashboard bytes for an identity.
func (f *FS) Read(identity string) ([]byte, error) {
	return f.ReadPath(DashboardPath(identity))
}

// ReadPath returns the raw bytes of the file at rel (relative to root).
func (f *FS) ReadPath(rel string) ([]byte, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("profiles: read %s: %w", rel, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("profiles: read %s: %w", rel, err)
	}
	return data, nil
}

// Write atomically writes a dashboard: tmp file → fsync → rename.
func (f *FS) Write(identity string, content []byte) error {
	abs, err := f.safePath(DashboardPath(identity))
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("profiles: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".taskwire-tmp-*")
	if err != nil {
		return fmt.Errorf("profiles: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("profiles: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("profiles: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("profiles: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("profiles: rename: %w", err)
	}
	success = true
	return nil
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
