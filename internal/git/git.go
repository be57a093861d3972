package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// CloneOptions describes what to clone
type CloneOptions struct {
	URL   string
	Ref   string // branch or tag; empty means the remote's default branch
	Depth int    // 0 clones full history
}

// Cloner clones the platform repository into a project directory
type Cloner struct {
	// Progress receives the remote's transfer progress; nil keeps it quiet
	Progress io.Writer
}

// NewCloner creates a cloner that streams transfer progress to w (may be nil)
func NewCloner(w io.Writer) *Cloner {
	return &Cloner{Progress: w}
}

// Clone clones opts.URL into targetDir, which may exist but must be empty
func (c *Cloner) Clone(ctx context.Context, opts CloneOptions, targetDir string) error {
	cloneOpts := &git.CloneOptions{
		URL:          opts.URL,
		Depth:        opts.Depth,
		SingleBranch: opts.Depth > 0,
		Tags:         git.NoTags,
		Progress:     c.Progress,
	}

	if opts.Ref == "" {
		_, err := git.PlainCloneContext(ctx, targetDir, false, cloneOpts)
		if err != nil {
			return fmt.Errorf("failed to clone repository: %w", err)
		}
		return nil
	}

	// try the ref as a branch first, then as a tag
	cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Ref)
	_, err := git.PlainCloneContext(ctx, targetDir, false, cloneOpts)
	if err == nil {
		return nil
	}
	if err := emptyDir(targetDir); err != nil {
		return err
	}

	cloneOpts.ReferenceName = plumbing.NewTagReferenceName(opts.Ref)
	if _, tagErr := git.PlainCloneContext(ctx, targetDir, false, cloneOpts); tagErr != nil {
		return fmt.Errorf("failed to clone repository at %s: %w", opts.Ref, errors.Join(
			fmt.Errorf("as branch: %w", err),
			fmt.Errorf("as tag: %w", tagErr),
		))
	}
	return nil
}

// CurrentRevision returns the checked-out commit of a clone, or "" if dir is not a repository
func CurrentRevision(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

// emptyDir removes everything inside dir, leaving dir itself in place
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
	}
	return nil
}
