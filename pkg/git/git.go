// Package git describes the revision of the suite checkout for run state and reports.
package git

import (
	"errors"
	"fmt"
)

// Revision identifies the checked out state of a repository.
type Revision struct {
	Branch string `json:"branch"` // empty for detached HEAD
	Commit string `json:"commit"` // short hash, empty when there are no commits
	Dirty  bool   `json:"dirty"`  // tracked files have uncommitted changes
}

// String returns branch@commit with a -dirty suffix, like "master@a1b2c3d-dirty".
func (r Revision) String() string {
	branch := r.Branch
	if branch == "" {
		branch = "HEAD"
	}
	s := branch
	if r.Commit != "" {
		s += "@" + r.Commit
	}
	if r.Dirty {
		s += "-dirty"
	}
	return s
}

const shortHashLen = 7

// backend is the subset of repository operations Describe needs.
type backend interface {
	Root() string
	HasCommits() (bool, error)
	CurrentBranch() (string, error)
	IsDirty() (bool, error)
	headHash() (string, error)
}

// Describe returns the revision of the repository containing path.
// go-git is used first, the git CLI is the fallback.
func Describe(path string) (Revision, error) {
	b, err := open(path)
	if err != nil {
		return Revision{}, err
	}
	return describe(b)
}

func open(path string) (backend, error) {
	gb, gErr := newGoGitBackend(path)
	if gErr == nil {
		return gb, nil
	}
	eb, eErr := newExternalBackend(path)
	if eErr == nil {
		return eb, nil
	}
	return nil, errors.Join(gErr, eErr)
}

func describe(b backend) (Revision, error) {
	var rev Revision
	branch, err := b.CurrentBranch()
	if err != nil {
		return rev, fmt.Errorf("describe %s: %w", b.Root(), err)
	}
	rev.Branch = branch

	hasCommits, err := b.HasCommits()
	if err != nil {
		return rev, fmt.Errorf("describe %s: %w", b.Root(), err)
	}
	if hasCommits {
		hash, err := b.headHash()
		if err != nil {
			return rev, fmt.Errorf("describe %s: %w", b.Root(), err)
		}
		if len(hash) > shortHashLen {
			hash = hash[:shortHashLen]
		}
		rev.Commit = hash
	}

	if rev.Dirty, err = b.IsDirty(); err != nil {
		return rev, fmt.Errorf("describe %s: %w", b.Root(), err)
	}
	return rev, nil
}
