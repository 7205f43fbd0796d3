// Package hostfs abstracts the file operations the cookbook performs on a
// target host so the same modules work on the local machine and over SFTP.
package hostfs

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// FS is the subset of file operations used on a target host.
type FS interface {
	Stat(name string) (os.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	// Create truncates or creates name for writing.
	Create(name string) (io.WriteCloser, error)
	MkdirAll(path string) error
	Chmod(name string, mode os.FileMode) error
	// Chown takes user and group names; empty values leave them unchanged.
	Chown(name, owner, group string) error
}

// Local operates on the machine the cookbook runs on.
type Local struct{}

func (Local) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (Local) Open(name string) (io.ReadCloser, error) { return os.Open(name) }

func (Local) Create(name string) (io.WriteCloser, error) { return os.Create(name) }

func (Local) MkdirAll(path string) error { return os.MkdirAll(path, 0o755) }

func (Local) Chmod(name string, mode os.FileMode) error { return os.Chmod(name, mode) }

func (Local) Chown(name, owner, group string) error {
	uid, gid := -1, -1
	if owner != "" {
		u, err := user.Lookup(owner)
		if err != nil {
			return fmt.Errorf("lookup user %s: %w", owner, err)
		}
		if uid, err = strconv.Atoi(u.Uid); err != nil {
			return fmt.Errorf("uid of %s: %w", owner, err)
		}
	}
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return fmt.Errorf("lookup group %s: %w", group, err)
		}
		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return fmt.Errorf("gid of %s: %w", group, err)
		}
	}
	return os.Lchown(name, uid, gid)
}

// Rooted maps every absolute path under a base directory. It lets tests
// and dry runs materialize a plan into a scratch tree.
type Rooted struct {
	Root string
	FS   FS
}

func (r Rooted) path(name string) string { return filepath.Join(r.Root, name) }

func (r Rooted) Stat(name string) (os.FileInfo, error) { return r.FS.Stat(r.path(name)) }

func (r Rooted) Open(name string) (io.ReadCloser, error) { return r.FS.Open(r.path(name)) }

func (r Rooted) Create(name string) (io.WriteCloser, error) { return r.FS.Create(r.path(name)) }

func (r Rooted) MkdirAll(path string) error { return r.FS.MkdirAll(r.path(path)) }

func (r Rooted) Chmod(name string, mode os.FileMode) error { return r.FS.Chmod(r.path(name), mode) }

// Chown is a no-op: a scratch tree is owned by whoever runs the cookbook.
func (r Rooted) Chown(name, owner, group string) error { return nil }

// ReadFile reads a whole file and always closes it.
func ReadFile(fsys FS, name string) ([]byte, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile truncates name and writes data. The close error is reported
// since a failed close can lose buffered remote writes.
func WriteFile(fsys FS, name string, data []byte) (err error) {
	f, err := fsys.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}
