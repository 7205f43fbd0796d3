package hardening

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eniac111/cookbook/internal/hostfs"
	"github.com/eniac111/cookbook/internal/types"
)

func sslPath(dir string) PathFunc {
	return func(app string) string { return filepath.Join(dir, app+".ssl.conf") }
}

func TestPatchSSLCiphers(t *testing.T) {
	dir := t.TempDir()
	conf := `server {
  listen 443;
  ssl_ciphers ALL:!ADH:!EXPORT56:RC4+RSA:+HIGH:+MEDIUM:+LOW:+SSLv2:+EXP;
  ssl_prefer_server_ciphers on;
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Tout.ssl.conf"), []byte(conf), 0o644))

	outcomes := PatchSSLCiphers(hostfs.Local{}, sslPath(dir), []types.AppDescriptor{{Name: "Tout"}, {Name: "Missing"}})
	require.Len(t, outcomes, 2)

	assert.NoError(t, outcomes[0].Err)
	assert.False(t, outcomes[0].Skipped)
	assert.Equal(t, 1, outcomes[0].Matches)

	assert.True(t, outcomes[1].Skipped)
	assert.NoError(t, outcomes[1].Err)
	_, err := os.Stat(filepath.Join(dir, "Missing.ssl.conf"))
	assert.True(t, os.IsNotExist(err), "missing config must not be created")

	got, err := os.ReadFile(filepath.Join(dir, "Tout.ssl.conf"))
	require.NoError(t, err)
	assert.Equal(t, `server {
  listen 443;
  ssl_ciphers HIGH:!ADH;
  ssl_prefer_server_ciphers on;
}
`, string(got))
}

func TestPatchSSLCiphers_RewritesWithoutMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Tout.ssl.conf")
	require.NoError(t, os.WriteFile(path, []byte("listen 443;\n"), 0o644))

	outcomes := PatchSSLCiphers(hostfs.Local{}, sslPath(dir), []types.AppDescriptor{{Name: "Tout"}})
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.Zero(t, outcomes[0].Matches)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "listen 443;\n", string(got))
}

func TestPatchSSLCiphers_AlreadyHardened(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Tout.ssl.conf")
	require.NoError(t, os.WriteFile(path, []byte("ssl_ciphers HIGH:!ADH;\n"), 0o644))

	for i := 0; i < 2; i++ {
		outcomes := PatchSSLCiphers(hostfs.Local{}, sslPath(dir), []types.AppDescriptor{{Name: "Tout"}})
		require.NoError(t, outcomes[0].Err)
	}
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ssl_ciphers HIGH:!ADH;\n", string(got))
}

// failingFS reports a file as present but refuses writes, and tracks that
// every handle it hands out is closed.
type failingFS struct {
	hostfs.Local
	open int
}

type trackedReader struct {
	io.ReadCloser
	fs *failingFS
}

func (r trackedReader) Close() error {
	r.fs.open--
	return r.ReadCloser.Close()
}

func (f *failingFS) Open(name string) (io.ReadCloser, error) {
	rc, err := f.Local.Open(name)
	if err != nil {
		return nil, err
	}
	f.open++
	return trackedReader{ReadCloser: rc, fs: f}, nil
}

func (f *failingFS) Create(name string) (io.WriteCloser, error) {
	return nil, os.ErrPermission
}

func TestPatchSSLCiphers_WriteFailureIsOutcome(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.ssl.conf"), []byte("ssl_ciphers RC4;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B.ssl.conf"), []byte("ssl_ciphers RC4;\n"), 0o644))

	fsys := &failingFS{}
	outcomes := PatchSSLCiphers(fsys, sslPath(dir), []types.AppDescriptor{{Name: "A"}, {Name: "B"}})
	require.Len(t, outcomes, 2)

	for _, o := range outcomes {
		var ioErr *ExternalIOError
		require.True(t, errors.As(o.Err, &ioErr))
		assert.Equal(t, "write", ioErr.Op)
		assert.True(t, errors.Is(o.Err, os.ErrPermission))
	}
	assert.Zero(t, fsys.open, "read handles must be released")
}
