package inventory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eniac111/cookbook/internal/types"
)

const nodeYAML = `
role:
  name: app-1
  instance_role: app_master
environment:
  ssh_username: deploy
  ssh_password: s3cret
  db_host: db-master.internal
  db_slaves_hostnames: [db-replica-1.internal]
  db_stack: mysql
  mysql_adapter: mysql2
  hostname: ip-10-0-0-12
apps:
  - name: Tout
  - name: ToutAdmin
hosts:
  - name: 10.0.0.12
    user: deploy
    port: 2222
`

func TestParse(t *testing.T) {
	n, err := Parse([]byte(nodeYAML))
	require.NoError(t, err)

	assert.Equal(t, types.RoleDescriptor{Name: "app-1", InstanceRole: types.RoleAppMaster}, n.Role)
	assert.Equal(t, types.DBStackMysql, n.Environment.DBStack)
	assert.Equal(t, "mysql2", n.Environment.RubyComponentMysqlAdapter)
	assert.Equal(t, []string{"db-replica-1.internal"}, n.Environment.DBSlaveHosts)
	assert.Equal(t, []types.AppDescriptor{{Name: "Tout"}, {Name: "ToutAdmin"}}, n.Apps)
	require.Len(t, n.Hosts, 1)
	assert.Equal(t, 2222, n.Hosts[0].Port)
}

func TestParse_JSON(t *testing.T) {
	doc := `{"role": {"instance_role": "solo"},` +
		`"environment": {"ssh_username": "deploy", "db_stack": "postgres"},` +
		`"apps": []}`
	n, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, types.RoleSolo, n.Role.InstanceRole)
	assert.Empty(t, n.Apps)
}

func TestParse_UnknownDBStackIsLeftToResolver(t *testing.T) {
	doc := strings.Replace(nodeYAML, "db_stack: mysql", "db_stack: oracle", 1)
	n, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, types.DBStack("oracle"), n.Environment.DBStack)
}

func TestParse_EmptyDBStackIsLeftToResolver(t *testing.T) {
	doc := strings.Replace(nodeYAML, "db_stack: mysql", "db_stack: \"\"", 1)
	n, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, n.Environment.DBStack)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", "", "empty document"},
		{"unknown_role", strings.Replace(nodeYAML, "app_master", "database", 1), "unknown instance role"},
		{"unknown_key", nodeYAML + "extra: 1\n", "not found"},
		{"missing_username", strings.Replace(nodeYAML, "ssh_username: deploy", "ssh_username: \"\"", 1), "SSHUsername"},
		{"bad_port", strings.Replace(nodeYAML, "port: 2222", "port: 70000", 1), "Port"},
		{"empty_host_name", nodeYAML + "  - name: \"\"\n    user: root\n", "Name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFile_Node(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yml")
	require.NoError(t, os.WriteFile(path, []byte(nodeYAML), 0o600))

	n, err := File{Path: path}.Node(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-1", n.Role.Name)

	n, err = File{Path: "-", Stdin: strings.NewReader(nodeYAML)}.Node(context.Background())
	require.NoError(t, err)
	assert.Len(t, n.Apps, 2)

	_, err = File{Path: filepath.Join(t.TempDir(), "missing.yml")}.Node(context.Background())
	assert.Error(t, err)
}
