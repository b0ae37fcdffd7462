package driven

import (
	"context"
	"errors"
)

// Error taxonomy for Git and build operations. Operation boundaries translate
// these into persisted status updates; Retryable decides whether the
// dispatcher should attempt the unit of work again.
var (
	// ErrInvalidRepository indicates a path does not contain a valid Git
	// repository. Not retried.
	ErrInvalidRepository = errors.New("not a valid git repository")

	// ErrCheckoutFailed indicates a worktree could not be created, typically
	// because the reference cannot be resolved. Configuration-class: retrying
	// the same reference cannot succeed.
	ErrCheckoutFailed = errors.New("worktree checkout failed")

	// ErrCleanupFailed indicates a worktree could not be removed. Callers log
	// it and continue; it never aborts an in-progress cleanup of other
	// resources.
	ErrCleanupFailed = errors.New("worktree cleanup failed")

	// ErrRepositoryMissing indicates the expected on-disk directory is absent.
	// Permanent failure for that attempt.
	ErrRepositoryMissing = errors.New("repository directory missing")

	// ErrConfigDirMissing indicates a build's configuration directory does not
	// exist in the checked-out tree. The build is not marked as having run.
	ErrConfigDirMissing = errors.New("configuration directory missing")

	// ErrMissingSourceRepository indicates a document has no source repository
	// configured. Non-retryable.
	ErrMissingSourceRepository = errors.New("document has no source repository")

	// ErrExternalTool wraps a nonzero exit or failure of an external clone or
	// render subprocess, carrying the raw tool diagnostic.
	ErrExternalTool = errors.New("external tool failed")
)

// Retryable reports whether an error is transient (network-class clone/fetch
// failures) and eligible for dispatcher retry with backoff. Configuration-
// class failures (bad path, invalid repository or reference, missing config)
// are final.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRepository),
		errors.Is(err, ErrCheckoutFailed),
		errors.Is(err, ErrRepositoryMissing),
		errors.Is(err, ErrConfigDirMissing),
		errors.Is(err, ErrMissingSourceRepository):
		return false
	case errors.Is(err, ErrExternalTool):
		return true
	}
	return false
}

// RefInfo describes a branch or tag.
type RefInfo struct {
	Name       string
	CommitHash string
}

// CommitInfo describes one commit in a repository's history.
type CommitInfo struct {
	Hash           string
	AuthorName     string
	AuthorEmail    string
	Summary        string
	Message        string
	CommittedAtUTC int64
	Parents        []string
}

// TreeEntry describes a file or directory in a repository tree.
type TreeEntry struct {
	Name string
	Path string
	Type string // "blob" or "tree"
	Hash string
}

// GitClient is the Git tooling collaborator. Every operation takes an
// explicit repository path and validates it per call; implementations hold
// no cross-call repository state.
type GitClient interface {
	// InitBare creates a bare repository at path.
	InitBare(ctx context.Context, path string) error

	// CloneMirror clones url into path with full-mirror semantics (all refs,
	// bare, no working tree).
	CloneMirror(ctx context.Context, url, path string) error

	// Clone performs a plain (optionally bare) clone of url into path.
	Clone(ctx context.Context, url, path string, bare bool) error

	// FetchPrune fetches all refs from origin with prune.
	FetchPrune(ctx context.Context, path string) error

	// IsRepository reports whether path contains a valid Git repository.
	IsRepository(ctx context.Context, path string) bool

	// WorktreeAdd checks out ref from the repository at repoPath into
	// worktreePath.
	WorktreeAdd(ctx context.Context, repoPath, worktreePath, ref string) error

	// WorktreeRemove removes a worktree previously added from repoPath.
	// force discards uncommitted changes.
	WorktreeRemove(ctx context.Context, repoPath, worktreePath string, force bool) error

	// HeadCommit resolves the commit hash of HEAD.
	HeadCommit(ctx context.Context, path string) (string, error)

	// Describe derives a human version string from tags reachable from HEAD.
	Describe(ctx context.Context, path string) (string, error)

	// CountCommits counts commits reachable from all refs.
	CountCommits(ctx context.Context, path string) (int, error)

	// DefaultBranch resolves the branch HEAD points at.
	DefaultBranch(ctx context.Context, path string) (string, error)

	// ListBranches enumerates local branches.
	ListBranches(ctx context.Context, path string) ([]RefInfo, error)

	// ListTags enumerates tags.
	ListTags(ctx context.Context, path string) ([]RefInfo, error)

	// Commits returns commit history for ref with pagination.
	Commits(ctx context.Context, path, ref string, limit, skip int) ([]CommitInfo, error)

	// FileContent returns the content of a file at ref.
	FileContent(ctx context.Context, path, ref, filePath string) (string, error)

	// ListTree lists the entries of a directory at ref. dir may be empty for
	// the repository root.
	ListTree(ctx context.Context, path, ref, dir string) ([]TreeEntry, error)
}
