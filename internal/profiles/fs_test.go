package profiles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/renshaw/taskwire/internal/apperr"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestIdentityFromPath(t *testing.T) {
	cases := []struct {
		path   string
		wantID string
		wantOK bool
	}{
		{"employee_profiles/42/taskdashboard.json", "42", true},
		{"data/employee_profiles/42/taskdashboard.json", "42", true},
		{"/srv/crm/employee_profiles/jane.doe/taskdashboard.json", "jane.doe", true},
		{"employee_profiles/42/notes.json", "", false},
		{"other_profiles/42/taskdashboard.json", "", false},
		{"employee_profiles/taskdashboard.json", "", false},
		{"taskdashboard.json", "", false},
		{"employee_profiles/42/archive/taskdashboard.json", "", false},
	}
	for _, tc := range cases {
		id, ok := IdentityFromPath(tc.path)
		if ok != tc.wantOK || id != tc.wantID {
			t.Errorf("IdentityFromPath(%q) = (%q, %v), want (%q, %v)",
				tc.path, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte(`{"tasks":[]}`)
	if err := s.Write("7", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("7")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingDashboard(t *testing.T) {
	s := tempRoot(t)
	_, err := s.Read("nobody")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("7", []byte(`{"tasks":[]}`))
	_ = s.Write("42", []byte(`{"tasks":[]}`))

	// A stray file in the tree must not show up.
	stray := filepath.Join(s.Root(), ProfilesDir, "42", "avatar.png")
	_ = os.WriteFile(stray, []byte("png"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	ids := map[string]bool{}
	for _, m := range items {
		ids[m.Identity] = true
		if m.Checksum == "" {
			t.Errorf("meta %q has empty checksum", m.Path)
		}
	}
	if !ids["7"] || !ids["42"] {
		t.Errorf("identities = %v", ids)
	}
}

func TestListChecksumTracksContent(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("7", []byte(`{"tasks":[{"id":"a"}]}`))

	before, err := s.List()
	if err != nil {
		t.Fatal(err)
	}

	// Same byte length, different content.
	_ = s.Write("7", []byte(`{"tasks":[{"id":"b"}]}`))
	after, err := s.List()
	if err != nil {
		t.Fatal(err)
	}

	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("len = %d/%d, want 1/1", len(before), len(after))
	}
	if before[0].Checksum == after[0].Checksum {
		t.Error("checksum unchanged after content rewrite")
	}
}

func TestList_EmptyRoot(t *testing.T) {
	s := tempRoot(t)
	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len = %d, want 0", len(items))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.ReadPath(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
}

func TestAtomicWriteNoLeftoverTemp(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("7", []byte(`{"tasks":[]}`))
	if err := s.Write("7", []byte(`{"tasks":[{"id":"t1"}]}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ProfilesDir, "7", ".taskwire-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/taskwire-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}
