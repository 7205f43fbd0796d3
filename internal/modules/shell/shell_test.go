package shell

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eniac111/cookbook/internal/types"
)

type recordingRunner struct {
	cmds []string
	err  error
}

func (r *recordingRunner) Run(_ context.Context, cmd string, _ io.Reader) (string, string, error) {
	r.cmds = append(r.cmds, cmd)
	return "ok\n", "boom\n", r.err
}

func TestAsUser(t *testing.T) {
	assert.Equal(t, "gem install remote_syslog", AsUser("root", "root", "gem install remote_syslog"))
	assert.Equal(t, "ls", AsUser("root", "", "ls"))
	assert.Equal(t,
		`sudo -n -H -u 'deploy' -- sh -c 'cd /data/Tout/current; echo '\''hi'\'''`,
		AsUser("root", "deploy", "cd /data/Tout/current; echo 'hi'"))
}

func TestShellModule_Run(t *testing.T) {
	r := &recordingRunner{}
	sm := ShellModule{Runner: r, LoginUser: "root"}

	res := sm.Run(context.Background(), types.ActionDirective{
		Label:     "install remote_syslog gem",
		Command:   "gem install remote_syslog",
		RunAsUser: "root",
	})
	require.False(t, res.Failed, res.Msg)
	assert.True(t, res.Changed)
	assert.Equal(t, "Command output: ok", res.Msg)
	assert.Equal(t, []string{"gem install remote_syslog"}, r.cmds)
}

func TestShellModule_Failure(t *testing.T) {
	r := &recordingRunner{err: assert.AnError}
	res := ShellModule{Runner: r}.Run(context.Background(), types.ActionDirective{Command: "false"})
	assert.True(t, res.Failed)
	assert.Contains(t, res.Msg, "boom")
}

func TestShellModule_MissingCommand(t *testing.T) {
	res := ShellModule{Runner: &recordingRunner{}}.Run(context.Background(), types.ActionDirective{})
	assert.True(t, res.Failed)
}

func TestLocalRunner(t *testing.T) {
	out, _, err := LocalRunner{}.Run(context.Background(), "cat", strings.NewReader("piped"))
	require.NoError(t, err)
	assert.Equal(t, "piped", out)

	_, _, err = LocalRunner{}.Run(context.Background(), "exit 3", nil)
	assert.Error(t, err)
}
