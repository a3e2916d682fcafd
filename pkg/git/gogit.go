package git

import (
	"errors"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// goGitBackend implements the backend interface with go-git.
type goGitBackend struct {
	repo *gogit.Repository
	root string
}

// newGoGitBackend opens the repository containing path, searching parent directories.
func newGoGitBackend(path string) (*goGitBackend, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(absPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository %s: %w", absPath, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	root, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, fmt.Errorf("eval symlinks: %w", err)
	}
	return &goGitBackend{repo: repo, root: root}, nil
}

var _ backend = (*goGitBackend)(nil)

// Root returns the absolute path to the repository root.
func (g *goGitBackend) Root() string {
	return g.root
}

// HasCommits returns true if HEAD resolves to a commit.
func (g *goGitBackend) HasCommits() (bool, error) {
	if _, err := g.repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check HEAD: %w", err)
	}
	return true, nil
}

// CurrentBranch returns the branch HEAD points to, or empty string for detached HEAD.
// works for unborn branches too.
func (g *goGitBackend) CurrentBranch() (string, error) {
	ref, err := g.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("get current branch: %w", err)
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", nil
	}
	return ref.Target().Short(), nil
}

// IsDirty returns true if tracked files are staged or modified. untracked files don't count.
func (g *goGitBackend) IsDirty() (bool, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("get status: %w", err)
	}
	for _, fs := range status {
		if fs.Staging == gogit.Untracked && fs.Worktree == gogit.Untracked {
			continue
		}
		if fs.Staging != gogit.Unmodified || fs.Worktree != gogit.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

func (g *goGitBackend) headHash() (string, error) {
	ref, err := g.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}
