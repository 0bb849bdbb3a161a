package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	// ErrCloneFailed wraps any failure to fetch a remote tree.
	ErrCloneFailed = errors.New("clone failed")
	// ErrInvalidLocation is returned for arguments that cannot be acquired.
	ErrInvalidLocation = errors.New("invalid location")
)

// CloneOptions configures remote tree acquisition.
type CloneOptions struct {
	// Depth limits history for shallow clones. Zero fetches full history.
	Depth int
	// Ref selects a branch name or a full reference ("refs/tags/v1").
	// Empty uses the remote HEAD.
	Ref string
	// TempDir is the parent for the clone directory. Empty uses os.TempDir.
	TempDir string
	// Progress receives the remote's sideband output when non-nil.
	Progress io.Writer
	// SSH configures auth for ssh:// and scp-style remotes.
	SSH SSHOpts
}

// Validate checks that the options are usable.
func (o CloneOptions) Validate() error {
	if o.Depth < 0 {
		return fmt.Errorf("%w: depth cannot be negative", ErrInvalidLocation)
	}
	return nil
}

func (o CloneOptions) referenceName() plumbing.ReferenceName {
	switch {
	case o.Ref == "":
		return ""
	case strings.HasPrefix(o.Ref, "refs/"):
		return plumbing.ReferenceName(o.Ref)
	default:
		return plumbing.NewBranchReferenceName(o.Ref)
	}
}

// Clone fetches loc into a fresh temporary directory and returns it with a
// cleanup func that removes it. On error nothing is left on disk.
func Clone(ctx context.Context, loc Location, opts CloneOptions) (string, func(), error) {
	if !loc.IsRemote() || loc.URL == "" {
		return "", nil, fmt.Errorf("%w: %q is not a remote repository", ErrInvalidLocation, loc.String())
	}
	if err := opts.Validate(); err != nil {
		return "", nil, err
	}

	dir, err := os.MkdirTemp(opts.TempDir, "treehash-*")
	if err != nil {
		return "", nil, fmt.Errorf("create clone dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	ref := opts.referenceName()
	cloneOpts := &git.CloneOptions{
		URL:           loc.URL,
		Depth:         opts.Depth,
		ReferenceName: ref,
		SingleBranch:  opts.Depth > 0 || ref != "",
		Progress:      opts.Progress,
		Tags:          git.NoTags,
	}

	if loc.usesSSH() {
		auth, closeAgent, err := sshAuth(loc, opts.SSH)
		if err != nil {
			cleanup()
			return "", nil, err
		}
		defer closeAgent()
		cloneOpts.Auth = auth
	}

	if _, err := git.PlainCloneContext(ctx, dir, false, cloneOpts); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: %s: %w", ErrCloneFailed, loc, err)
	}
	return dir, cleanup, nil
}

// Acquire turns a CLI argument into a local directory. Local paths are
// returned as-is with a no-op cleanup; remotes are cloned.
func Acquire(ctx context.Context, arg string, opts CloneOptions) (string, func(), Location, error) {
	loc := ParseLocation(arg)
	if !loc.IsRemote() {
		if loc.Path == "" {
			return "", nil, loc, fmt.Errorf("%w: empty path", ErrInvalidLocation)
		}
		return loc.Path, func() {}, loc, nil
	}
	dir, cleanup, err := Clone(ctx, loc, opts)
	if err != nil {
		return "", nil, loc, err
	}
	return dir, cleanup, loc, nil
}
