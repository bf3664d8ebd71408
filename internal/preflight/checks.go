package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Check evaluates one requirement against the filesystem.
func Check(req Requirement) Result {
	res := Result{Name: req.Name}
	path := req.Path
	info, err := os.Stat(path)
	if req.Access == Creatable && os.IsNotExist(err) {
		parent, perr := existingAncestor(path)
		if perr != nil {
			res.Detail = fmt.Sprintf("%s (error: %v)", path, perr)
			return res
		}
		if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
			res.Detail = fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)
			return res
		}
		res.Passed = true
		res.Detail = fmt.Sprintf("%s (will be created)", path)
		return res
	}
	switch {
	case os.IsNotExist(err):
		res.Detail = fmt.Sprintf("%s (error: does not exist)", path)
		return res
	case err != nil:
		res.Detail = fmt.Sprintf("%s (error: stat: %v)", path, err)
		return res
	case req.Access == File && info.IsDir():
		res.Detail = fmt.Sprintf("%s (error: is a directory)", path)
		return res
	case req.Access != File && !info.IsDir():
		res.Detail = fmt.Sprintf("%s (error: is not a directory)", path)
		return res
	}

	mode, label := accessMode(req.Access)
	if err := unix.Access(path, mode); err != nil {
		res.Detail = fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)
		return res
	}
	res.Passed = true
	res.Detail = fmt.Sprintf("%s (%s ok)", path, label)
	return res
}

func accessMode(access Access) (uint32, string) {
	switch access {
	case Write, Creatable:
		return unix.R_OK | unix.W_OK | unix.X_OK, "read/write"
	case File:
		return unix.R_OK, "read"
	default:
		return unix.R_OK | unix.X_OK, "read"
	}
}

// existingAncestor walks up from path to the nearest directory that exists.
func existingAncestor(path string) (string, error) {
	dir := filepath.Clean(path)
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing parent directory")
		}
		dir = parent
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", dir)
			}
			return dir, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}
