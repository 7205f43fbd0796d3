package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/eniac111/cookbook/internal/types"
)

const soloNode = `
role:
  name: solo-1
  instance_role: solo
environment:
  ssh_username: deploy
  ssh_password: s3cret
  db_host: localhost
  db_stack: postgres9
  hostname: solo-1
apps:
  - name: Tout
`

// run executes the root command with a fresh config file and node document
// and returns what was written to stdout.
func run(t *testing.T, node string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "cookbook.yaml")
	cfg := "apply:\n  manifest_dir: " + filepath.Join(dir, "manifests") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	nodePath := filepath.Join(dir, "node.yml")
	require.NoError(t, os.WriteFile(nodePath, []byte(node), 0o600))

	t.Cleanup(func() {
		cfgFile, nodeFile, logLevel, logFormat, only = "", "node.yml", "", "", ""
		dryRun, root = false, ""
		for _, name := range []string{"dry-run", "root"} {
			if f := applyCmd.Flags().Lookup(name); f != nil {
				f.Changed = false
			}
		}
	})

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", cfgPath, "--node", nodePath}, args...))
	err := ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	out, err := run(t, soloNode, "resolve")
	require.NoError(t, err)

	var plan types.Plan
	require.NoError(t, yaml.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Artifacts, 4)
	assert.Equal(t, "/data/Tout/shared/config/database.yml", plan.Artifacts[0].TargetPath)
	assert.Equal(t, "postgresql", plan.Artifacts[0].Variables["dbtype"])
	assert.Len(t, plan.Actions, 5)
}

func TestResolveCommand_Only(t *testing.T) {
	out, err := run(t, soloNode, "resolve", "--only", "/etc/**")
	require.NoError(t, err)

	var plan types.Plan
	require.NoError(t, yaml.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Artifacts, 3)
	for _, a := range plan.Artifacts {
		assert.Regexp(t, `^/etc/`, a.TargetPath)
	}
}

func TestResolveCommand_UnknownDBStack(t *testing.T) {
	node := `
role: {instance_role: app}
environment: {ssh_username: deploy, db_stack: sqlite}
apps: [{name: Tout}]
`
	out, err := run(t, node, "resolve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
	assert.Empty(t, out)
}

func TestApplyCommand_Root(t *testing.T) {
	scratch := t.TempDir()
	out, err := run(t, soloNode, "apply", "--root", scratch)
	require.NoError(t, err)
	assert.Contains(t, out, "local: 4 directives, 4 changed")

	assert.FileExists(t, filepath.Join(scratch, "data/Tout/shared/config/database.yml"))
	assert.FileExists(t, filepath.Join(scratch, "etc/log_files.yml"))
}

func TestApplyCommand_DryRun(t *testing.T) {
	scratch := t.TempDir()
	out, err := run(t, soloNode, "apply", "--root", scratch, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "0 changed")

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
