package shell

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"os/user"
	"strings"

	"github.com/eniac111/cookbook/internal/types"
)

// Runner executes a shell command line on a target host.
type Runner interface {
	Run(ctx context.Context, cmd string, stdin io.Reader) (stdout, stderr string, err error)
}

// LocalRunner runs commands with sh on the current machine.
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, cmdString string, stdin io.Reader) (string, string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdString)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// ShellModule runs unscheduled action directives.
type ShellModule struct {
	Runner Runner
	// LoginUser is the user the runner executes as. Actions for any
	// other user are wrapped in sudo.
	LoginUser string
}

func (sm ShellModule) Run(ctx context.Context, action types.ActionDirective) types.ModuleResult {
	res := types.ModuleResult{
		Name:   action.Label,
		Module: "shell",
	}

	if action.Command == "" {
		res.Failed = true
		res.Msg = "Missing command for shell module"
		return res
	}

	out, errOut, err := sm.Runner.Run(ctx, AsUser(sm.LoginUser, action.RunAsUser, action.Command), nil)
	if err != nil {
		res.Failed = true
		res.Msg = "Command failed: " + err.Error() + ": " + strings.TrimSpace(errOut)
		return res
	}

	// A command always counts as a change; there is no way to tell otherwise.
	res.Changed = true
	res.Msg = "Command output: " + strings.TrimSpace(out)
	return res
}

// AsUser wraps cmd so that it runs as runAs when that differs from the
// login user.
func AsUser(loginUser, runAs, cmd string) string {
	if runAs == "" || runAs == loginUser {
		return cmd
	}
	return "sudo -n -H -u " + Quote(runAs) + " -- sh -c " + Quote(cmd)
}

// Quote single-quotes s for sh.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// CurrentUser returns the name of the user running the cookbook.
func CurrentUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
