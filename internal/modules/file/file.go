package file

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/eniac111/cookbook/internal/hostfs"
	"github.com/eniac111/cookbook/internal/types"
)

// FileModule writes rendered artifacts onto a target filesystem.
type FileModule struct {
	FS hostfs.FS
}

// Run materializes one artifact directive with already rendered content.
// The file is only rewritten when its content differs; ownership and mode
// are enforced either way.
func (fm FileModule) Run(d types.ArtifactDirective, content []byte) types.ModuleResult {
	res := types.ModuleResult{
		Name:   d.TargetPath,
		Module: "template",
	}

	if d.TargetPath == "" {
		return failResult(res, "Missing target path")
	}

	// 1. Make sure the parent directory exists
	if _, err := ensureDirectory(fm.FS, path.Dir(d.TargetPath)); err != nil {
		return failResult(res, err.Error())
	}

	// 2. Write content if it changed
	current, err := hostfs.ReadFile(fm.FS, d.TargetPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		current = nil
	case err != nil:
		return failResult(res, err.Error())
	}
	if current == nil || !bytes.Equal(current, content) {
		if err := hostfs.WriteFile(fm.FS, d.TargetPath, content); err != nil {
			return failResult(res, err.Error())
		}
		res.Changed = true
		res.Bytes = int64(len(content))
	}

	// 3. Set ownership and permissions
	attrChanged, err := setFileAttributes(fm.FS, d.TargetPath, d.Owner, d.Group, d.Mode)
	if err != nil {
		return failResult(res, err.Error())
	}
	res.Changed = res.Changed || attrChanged

	if res.Changed {
		res.Msg = fmt.Sprintf("File '%s' written (%s)", d.TargetPath, d.Mode)
	} else {
		res.Msg = fmt.Sprintf("File '%s' unchanged", d.TargetPath)
	}
	return res
}

// EnforceAttributes applies only the ownership and mode of d to a file
// whose content is already known to be current.
func (fm FileModule) EnforceAttributes(d types.ArtifactDirective) types.ModuleResult {
	res := types.ModuleResult{
		Name:   d.TargetPath,
		Module: "template",
	}
	changed, err := setFileAttributes(fm.FS, d.TargetPath, d.Owner, d.Group, d.Mode)
	if err != nil {
		return failResult(res, err.Error())
	}
	res.Changed = changed
	if changed {
		res.Msg = fmt.Sprintf("File '%s' attributes reset (%s)", d.TargetPath, d.Mode)
	} else {
		res.Msg = fmt.Sprintf("Skipping %s (unchanged)", d.TargetPath)
	}
	return res
}

// Checksum returns the hex sha256 of a file on fsys.
func Checksum(fsys hostfs.FS, name string) (string, error) {
	data, err := hostfs.ReadFile(fsys, name)
	if err != nil {
		return "", err
	}
	return ChecksumBytes(data), nil
}

// ChecksumBytes returns the hex sha256 of data.
func ChecksumBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ---------------------------------------------------------
//  Helper Functions
// ---------------------------------------------------------

func ensureDirectory(fsys hostfs.FS, dir string) (bool, error) {
	info, err := fsys.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := fsys.MkdirAll(dir); err != nil {
			return false, err
		}
		return true, nil
	} else if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("'%s' exists but is not a directory", dir)
	}
	return false, nil
}

func setFileAttributes(fsys hostfs.FS, name, owner, group string, mode types.Mode) (bool, error) {
	info, err := fsys.Stat(name)
	if err != nil {
		return false, err
	}
	changed := false
	if info.Mode().Perm() != mode.Perm() {
		if err := fsys.Chmod(name, mode.Perm()); err != nil {
			return false, fmt.Errorf("chmod %s: %w", name, err)
		}
		changed = true
	}
	if owner != "" || group != "" {
		if err := fsys.Chown(name, owner, group); err != nil {
			return changed, fmt.Errorf("chown %s: %w", name, err)
		}
	}
	return changed, nil
}

// failResult is a helper function to set Failed = true with a given message.
func failResult(res types.ModuleResult, msg string) types.ModuleResult {
	res.Failed = true
	res.Msg = msg
	return res
}
