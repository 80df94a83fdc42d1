// Package profiles gives access to the employee profile tree holding one
// task dashboard file per employee.
package profiles

import "time"

// DashboardMeta describes one employee's dashboard file on disk. Checksum
// is the content digest; change detection compares it rather than mtime,
// which can be too coarse on network mounts to catch a quick rewrite.
type DashboardMeta struct {
	Identity  string
	Path      string // relative to the profiles root
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for dashboard file operations.
type Provider interface {
	// List returns metadata for every dashboard file under the root.
	List() ([]DashboardMeta, error)
	// Read returns the raw bytes of an employee's dashboard.
	Read(identity string) ([]byte, error)
	// ReadPath returns the raw bytes of a dashboard by relative path.
	ReadPath(rel string) ([]byte, error)
	// Write atomically replaces an employee's dashboard contents.
	Write(identity string, content []byte) error
	// Root returns the absolute path of the profiles root.
	Root() string
}
