package git

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/logging"
)

// Ref is a named reference and the commit it points at.
type Ref struct {
	Name string // short name, e.g. "main-backup-1700000000000"
	Hash string
}

// Repository is a resolved handle to one working copy. It is created once
// per CLI invocation and passed to every component, so no component
// resolves the repository root or git directory on its own.
//
// Reference lookups go through go-git when the repository can be opened
// natively, and fall back to the git CLI otherwise (for example when the
// repository uses an extension go-git does not understand).
type Repository struct {
	root   string
	gitDir string
	gw     Gateway
	native *gogit.Repository
	logger *logging.Logger
}

// OpenOptions configures Open.
type OpenOptions struct {
	Binary string
	Logger *logging.Logger
}

// Open resolves the repository containing path, checks the git version
// and returns a handle whose gateway runs in the repository root.
func Open(ctx context.Context, path string, opts OpenOptions) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewGitError("invalid repository path", err).WithRepository(path)
	}

	probe := NewCLIGateway(opts.Binary, abs, opts.Logger)
	if _, err := CheckVersion(ctx, probe); err != nil {
		return nil, err
	}

	out, err := probe.Run(ctx, Git("rev-parse", "--show-toplevel", "--absolute-git-dir"))
	if err != nil {
		return nil, errors.NewGitError("failed to open repository", errors.ErrNotGitRepository).
			WithRepository(abs).
			WithGitOutput(Stderr(err))
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 || lines[0] == "" {
		return nil, errors.NewGitError("failed to open repository", errors.ErrNotGitRepository).
			WithRepository(abs).
			WithGitOutput(out)
	}

	root := strings.TrimSpace(lines[0])
	gitDir := strings.TrimSpace(lines[1])
	return NewRepository(root, gitDir, NewCLIGateway(opts.Binary, root, opts.Logger), opts.Logger), nil
}

// NewRepository builds a handle from already resolved paths. Tests use it
// with a fake gateway.
func NewRepository(root, gitDir string, gw Gateway, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NopLogger()
	}
	r := &Repository{root: root, gitDir: gitDir, gw: gw, logger: logger}

	native, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		logger.Debug("native repository access unavailable, using git CLI", "root", root, "error", err)
	} else {
		r.native = native
	}
	return r
}

// Root returns the working tree root.
func (r *Repository) Root() string {
	return r.root
}

// GitDir returns the absolute git directory (per-worktree for linked worktrees).
func (r *Repository) GitDir() string {
	return r.gitDir
}

// Gateway returns the command gateway bound to the repository root.
func (r *Repository) Gateway() Gateway {
	return r.gw
}

// Run is shorthand for r.Gateway().Run.
func (r *Repository) Run(ctx context.Context, cmd Command) (string, error) {
	return r.gw.Run(ctx, cmd)
}

// GitDirEntryExists reports whether name exists inside the git directory.
func (r *Repository) GitDirEntryExists(name string) bool {
	if r.gitDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(r.gitDir, name))
	return err == nil
}

// Head returns the full hash HEAD points at.
func (r *Repository) Head(ctx context.Context) (string, error) {
	if r.native != nil {
		ref, err := r.native.Head()
		if err == nil {
			return ref.Hash().String(), nil
		}
		r.logger.Debug("go-git HEAD lookup failed, using git CLI", "error", err)
	}

	out, err := r.gw.Run(ctx, Git("rev-parse", "HEAD"))
	if err != nil {
		return "", errors.NewGitError("failed to resolve HEAD", err).WithRepository(r.root)
	}
	return out, nil
}

// ResolveRef resolves a full reference name such as "refs/heads/main" or
// "refs/remotes/origin/main". A missing reference is reported with
// found=false and a nil error.
func (r *Repository) ResolveRef(ctx context.Context, name string) (hash string, found bool, err error) {
	if r.native != nil {
		ref, err := r.native.Reference(plumbing.ReferenceName(name), true)
		switch {
		case err == nil:
			return ref.Hash().String(), true, nil
		case errors.Is(err, plumbing.ErrReferenceNotFound):
			return "", false, nil
		default:
			r.logger.Debug("go-git reference lookup failed, using git CLI", "ref", name, "error", err)
		}
	}

	out, err := r.gw.Run(ctx, Git("rev-parse", "--verify", "--quiet", name+"^{commit}"))
	if err != nil {
		if ExitCode(err) == 1 {
			return "", false, nil
		}
		return "", false, errors.NewGitError("failed to resolve reference", err).WithRepository(r.root)
	}
	return out, true, nil
}

// Branches lists local branches whose short name starts with prefix,
// sorted by name.
func (r *Repository) Branches(ctx context.Context, prefix string) ([]Ref, error) {
	var refs []Ref

	if r.native != nil {
		iter, err := r.native.Branches()
		if err == nil {
			err = iter.ForEach(func(ref *plumbing.Reference) error {
				if short := ref.Name().Short(); strings.HasPrefix(short, prefix) {
					refs = append(refs, Ref{Name: short, Hash: ref.Hash().String()})
				}
				return nil
			})
			iter.Close()
		}
		if err == nil {
			sortRefs(refs)
			return refs, nil
		}
		r.logger.Debug("go-git branch listing failed, using git CLI", "error", err)
		refs = nil
	}

	out, err := r.gw.Run(ctx, Git("for-each-ref", "--format=%(refname:short)%09%(objectname)", "refs/heads/"))
	if err != nil {
		return nil, errors.NewGitError("failed to list branches", err).WithRepository(r.root)
	}
	for _, line := range strings.Split(out, "\n") {
		name, hash, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		refs = append(refs, Ref{Name: name, Hash: hash})
	}
	sortRefs(refs)
	return refs, nil
}

func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
}
