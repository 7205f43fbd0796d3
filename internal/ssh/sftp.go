package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/eniac111/cookbook/internal/modules/shell"
)

// FS implements hostfs.FS on a remote host over SFTP. Name lookups for
// Chown go through the SSH session since SFTP only takes numeric ids.
type FS struct {
	client *sftp.Client
	runner shell.Runner
}

// NewFS opens an SFTP subsystem on an established connection.
func NewFS(sshClient *ssh.Client) (*FS, error) {
	c, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("failed to start sftp: %w", err)
	}
	return &FS{client: c, runner: Runner{Client: sshClient}}, nil
}

// Close ends the SFTP session; the SSH connection stays open.
func (f *FS) Close() error { return f.client.Close() }

func (f *FS) Stat(name string) (os.FileInfo, error) { return f.client.Stat(name) }

func (f *FS) Open(name string) (io.ReadCloser, error) { return f.client.Open(name) }

func (f *FS) Create(name string) (io.WriteCloser, error) { return f.client.Create(name) }

func (f *FS) MkdirAll(path string) error { return f.client.MkdirAll(path) }

func (f *FS) Chmod(name string, mode os.FileMode) error { return f.client.Chmod(name, mode) }

func (f *FS) Chown(name, owner, group string) error {
	info, err := f.client.Stat(name)
	if err != nil {
		return err
	}
	uid, gid := -1, -1
	if st, ok := info.Sys().(*sftp.FileStat); ok {
		uid, gid = int(st.UID), int(st.GID)
	}
	if owner != "" {
		if uid, err = f.lookupUID(owner); err != nil {
			return fmt.Errorf("lookup user %s: %w", owner, err)
		}
	}
	if group != "" {
		if gid, err = f.lookupGID(group); err != nil {
			return fmt.Errorf("lookup group %s: %w", group, err)
		}
	}
	if uid < 0 || gid < 0 {
		return fmt.Errorf("cannot determine ownership of %s", name)
	}
	return f.client.Chown(name, uid, gid)
}

func (f *FS) lookupUID(owner string) (int, error) {
	out, errOut, err := f.runner.Run(context.Background(), "id -u "+shell.Quote(owner), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", err, strings.TrimSpace(errOut))
	}
	return parseID(out)
}

// lookupGID reads the group database entry. getent exits non-zero with
// no output when the group does not exist.
func (f *FS) lookupGID(group string) (int, error) {
	out, errOut, err := f.runner.Run(context.Background(), "getent group "+shell.Quote(group), nil)
	if strings.TrimSpace(out) == "" {
		if err != nil && strings.TrimSpace(errOut) != "" {
			return 0, fmt.Errorf("%w: %s", err, strings.TrimSpace(errOut))
		}
		return 0, fmt.Errorf("no such group")
	}
	if err != nil {
		return 0, err
	}
	// name:password:gid:members
	fields := strings.Split(strings.TrimSpace(out), ":")
	if len(fields) < 3 {
		return 0, fmt.Errorf("unexpected group entry %q", strings.TrimSpace(out))
	}
	return parseID(fields[2])
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("unexpected id %q", strings.TrimSpace(s))
	}
	return id, nil
}
