package apply

import (
	"context"
	"errors"
	"fmt"

	"github.com/eniac111/cookbook/internal/hostfs"
	"github.com/eniac111/cookbook/internal/modules/shell"
	"github.com/eniac111/cookbook/internal/ssh"
	"github.com/eniac111/cookbook/internal/types"
)

// Target is a host a plan is applied to.
type Target struct {
	Name      string
	FS        hostfs.FS
	Runner    shell.Runner
	LoginUser string
	// SkipActions is set for scratch-tree targets where commands would
	// otherwise hit the real machine.
	SkipActions bool

	closers []func() error
}

// Local returns the machine the cookbook runs on. A non-empty root maps
// every artifact path below it and disables actions.
func Local(root string) *Target {
	t := &Target{
		Name:      "local",
		FS:        hostfs.Local{},
		Runner:    shell.LocalRunner{},
		LoginUser: shell.CurrentUser(),
	}
	if root != "" {
		t.FS = hostfs.Rooted{Root: root, FS: hostfs.Local{}}
		t.SkipActions = true
	}
	return t
}

// Dial connects to an inventory host over SSH and SFTP.
func Dial(ctx context.Context, host types.Host, opts ssh.Options) (*Target, error) {
	client, err := ssh.Connect(ctx, host, opts)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", host.Name, err)
	}
	fsys, err := ssh.NewFS(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect %s: %w", host.Name, err)
	}
	return &Target{
		Name:      host.Name,
		FS:        fsys,
		Runner:    ssh.Runner{Client: client},
		LoginUser: host.User,
		closers:   []func() error{fsys.Close, client.Close},
	}, nil
}

// Close releases the target's connections.
func (t *Target) Close() error {
	var errs []error
	for _, c := range t.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}
