package ssh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eniac111/cookbook/internal/types"
)

// Options controls how hosts are authenticated.
type Options struct {
	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath string
	// InsecureIgnoreHostKey skips host key verification.
	InsecureIgnoreHostKey bool
	Logger                *slog.Logger
}

// Connect opens an SSH connection using user/password or user/key auth.
func Connect(ctx context.Context, host types.Host, opts Options) (*ssh.Client, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	var authMethods []ssh.AuthMethod

	if host.Password != "" {
		authMethods = append(authMethods, ssh.Password(host.Password))
	}

	keyPath := host.KeyPath
	if keyPath == "" {
		keyPath = "~/.ssh/id_rsa"
	}
	keyPath, err := homedir.Expand(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand key path: %w", err)
	}
	key, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			if host.KeyPath != "" {
				return nil, fmt.Errorf("failed to parse SSH key: %w", err)
			}
			log.Debug("failed to parse default SSH key", "path", keyPath, "error", err)
		} else {
			authMethods = append(authMethods, ssh.PublicKeys(signer))
			log.Debug("using SSH key", "path", keyPath)
		}
	case host.KeyPath != "":
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	default:
		log.Debug("no default SSH key", "path", keyPath, "error", err)
	}

	// Always try to use the SSH agent
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if sshAgent, err := net.Dial("unix", sock); err == nil {
			authMethods = append(authMethods, ssh.PublicKeysCallback(agent.NewClient(sshAgent).Signers))
			log.Debug("using SSH agent")
		} else {
			log.Debug("failed to connect to SSH agent", "error", err)
		}
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}

	hkCallback, err := hostKeyCallback(opts)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            host.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
	}

	port := host.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host.Name, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH: %w", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to dial SSH: %w", err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func hostKeyCallback(opts Options) (ssh.HostKeyCallback, error) {
	if opts.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := opts.KnownHostsPath
	if path == "" {
		path = "~/.ssh/known_hosts"
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand known_hosts path: %w", err)
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return cb, nil
}

// RunCommand executes a command on the remote host via SSH.
func RunCommand(ctx context.Context, sshClient *ssh.Client, cmd string, stdin io.Reader) (string, string, error) {
	session, err := sshClient.NewSession()
	if err != nil {
		return "", "", err
	}
	defer session.Close()

	var outBuf, errBuf strings.Builder
	session.Stdin = stdin
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case err := <-done:
		return outBuf.String(), errBuf.String(), err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return outBuf.String(), errBuf.String(), ctx.Err()
	}
}

// Runner runs commands on a remote host.
type Runner struct {
	Client *ssh.Client
}

func (r Runner) Run(ctx context.Context, cmd string, stdin io.Reader) (string, string, error) {
	return RunCommand(ctx, r.Client, cmd, stdin)
}
