package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// externalBackend reads the revision from the git CLI.
// used when go-git can't open a repository, e.g. with extensions it doesn't support.
type externalBackend struct {
	root string
}

var _ backend = (*externalBackend)(nil)

func newExternalBackend(path string) (*externalBackend, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	out, err := gitOutput(abs, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("open git repository %s: %w", abs, err)
	}
	root, err := filepath.EvalSymlinks(strings.TrimSpace(out))
	if err != nil {
		return nil, fmt.Errorf("eval symlinks: %w", err)
	}
	return &externalBackend{root: root}, nil
}

// gitOutput runs git in dir with C locale and returns stdout. stderr becomes the error text.
func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(context.Background(), "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

// porcelain is the parsed header and entries of `git status --porcelain=v2 --branch`.
type porcelain struct {
	oid   string // "(initial)" before the first commit
	head  string // "(detached)" when not on a branch
	dirty bool
}

func parsePorcelain(out string) porcelain {
	var p porcelain
	for line := range strings.SplitSeq(out, "\n") {
		switch {
		case strings.HasPrefix(line, "# branch.oid "):
			p.oid = strings.TrimPrefix(line, "# branch.oid ")
		case strings.HasPrefix(line, "# branch.head "):
			p.head = strings.TrimPrefix(line, "# branch.head ")
		case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, "?"), strings.HasPrefix(line, "!"):
			// other headers, untracked and ignored files
		default:
			p.dirty = true // changed (1), renamed (2) or unmerged (u) entry
		}
	}
	return p
}

func (e *externalBackend) status() (porcelain, error) {
	out, err := gitOutput(e.root, "status", "--porcelain=v2", "--branch", "--untracked-files=no")
	if err != nil {
		return porcelain{}, err
	}
	return parsePorcelain(out), nil
}

func (e *externalBackend) Root() string { return e.root }

func (e *externalBackend) HasCommits() (bool, error) {
	st, err := e.status()
	if err != nil {
		return false, err
	}
	return st.oid != "" && st.oid != "(initial)", nil
}

// CurrentBranch returns an empty name for detached HEAD.
func (e *externalBackend) CurrentBranch() (string, error) {
	st, err := e.status()
	if err != nil {
		return "", err
	}
	if st.head == "(detached)" {
		return "", nil
	}
	return st.head, nil
}

// IsDirty reports staged or modified tracked files, untracked files don't count.
func (e *externalBackend) IsDirty() (bool, error) {
	st, err := e.status()
	if err != nil {
		return false, err
	}
	return st.dirty, nil
}

func (e *externalBackend) headHash() (string, error) {
	st, err := e.status()
	if err != nil {
		return "", err
	}
	if st.oid == "" || st.oid == "(initial)" {
		return "", errors.New("get HEAD: no commits")
	}
	return st.oid, nil
}
