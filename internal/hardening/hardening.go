// Package hardening holds the recipe's best-effort security edits. Unlike
// the resolver, these touch the target filesystem directly, and a failure
// here is reported as an outcome rather than aborting the run.
package hardening

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"

	"github.com/eniac111/cookbook/internal/hostfs"
	"github.com/eniac111/cookbook/internal/types"
)

// HardenedCiphers replaces every ssl_ciphers declaration.
const HardenedCiphers = "ssl_ciphers HIGH:!ADH;"

var cipherLine = regexp.MustCompile(`ssl_ciphers (.*);`)

// ExternalIOError wraps a read or write failure while patching a file.
type ExternalIOError struct {
	Path string
	Op   string
	Err  error
}

func (e *ExternalIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ExternalIOError) Unwrap() error { return e.Err }

// Outcome is the result of patching one app's SSL config.
type Outcome struct {
	App     string
	Path    string
	Skipped bool // no config file for the app
	Matches int
	Err     error
}

// PathFunc returns the SSL config path of an app.
type PathFunc func(appName string) string

// PatchSSLCiphers rewrites the cipher policy of each app's web server SSL
// config. Files that do not exist are skipped. Files that exist are always
// rewritten, even when no declaration matched.
func PatchSSLCiphers(fsys hostfs.FS, pathOf PathFunc, apps []types.AppDescriptor) []Outcome {
	outcomes := make([]Outcome, 0, len(apps))
	for _, app := range apps {
		outcomes = append(outcomes, patchOne(fsys, app.Name, pathOf(app.Name)))
	}
	return outcomes
}

func patchOne(fsys hostfs.FS, app, path string) Outcome {
	out := Outcome{App: app, Path: path}
	if _, err := fsys.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			out.Skipped = true
			return out
		}
		out.Err = &ExternalIOError{Path: path, Op: "stat", Err: err}
		return out
	}

	data, err := hostfs.ReadFile(fsys, path)
	if err != nil {
		out.Err = &ExternalIOError{Path: path, Op: "read", Err: err}
		return out
	}

	out.Matches = len(cipherLine.FindAllIndex(data, -1))
	patched := cipherLine.ReplaceAllLiteral(data, []byte(HardenedCiphers))

	if err := hostfs.WriteFile(fsys, path, patched); err != nil {
		out.Err = &ExternalIOError{Path: path, Op: "write", Err: err}
	}
	return out
}
