package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// WorktreeManager produces ephemeral working checkouts from bare repositories
// and guarantees their removal. Non-bare repositories are their own working
// directory; no checkout is created for them.
type WorktreeManager struct {
	git    driven.GitClient
	logger *slog.Logger
}

// NewWorktreeManager creates a WorktreeManager.
func NewWorktreeManager(git driven.GitClient, logger *slog.Logger) *WorktreeManager {
	return &WorktreeManager{git: git, logger: logger}
}

// Checkout is a working directory obtained from Acquire. Ephemeral checkouts
// own a temporary directory removed by Release; for non-bare repositories
// Release is a no-op.
type Checkout struct {
	// Path is the working directory to operate in.
	Path string

	repoPath  string
	tempDir   string
	ephemeral bool
	released  bool
	manager   *WorktreeManager
}

// Acquire produces a working checkout of repo at ref (HEAD when empty). Bare
// repositories get a detached worktree inside a fresh temporary directory;
// non-bare repositories return their working directory unchanged.
func (m *WorktreeManager) Acquire(ctx context.Context, repo *model.Repository, ref string) (*Checkout, error) {
	if ref == "" {
		ref = "HEAD"
	}
	if !m.git.IsRepository(ctx, repo.LocalPath) {
		return nil, fmt.Errorf("%w: %s", driven.ErrInvalidRepository, repo.LocalPath)
	}

	if !repo.IsBare {
		return &Checkout{Path: repo.LocalPath, manager: m}, nil
	}

	tempDir, err := os.MkdirTemp("", "spienxhub-checkout-")
	if err != nil {
		return nil, fmt.Errorf("create checkout directory: %w", err)
	}

	worktreePath := filepath.Join(tempDir, "tree")
	if err := m.git.WorktreeAdd(ctx, repo.LocalPath, worktreePath, ref); err != nil {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			m.logger.Warn("failed to remove checkout directory after checkout failure",
				"path", tempDir, "error", rmErr)
		}
		return nil, err
	}

	return &Checkout{
		Path:      worktreePath,
		repoPath:  repo.LocalPath,
		tempDir:   tempDir,
		ephemeral: true,
		manager:   m,
	}, nil
}

// Release removes an ephemeral checkout. The worktree metadata removal is
// attempted first; the temporary directory is always removed afterwards, so
// a failed worktree command never leaves the directory behind. Errors are
// logged and reported as ErrCleanupFailed; callers treat them as non-fatal.
func (c *Checkout) Release(ctx context.Context) error {
	if !c.ephemeral || c.released {
		return nil
	}
	c.released = true

	var failed bool
	if err := c.manager.git.WorktreeRemove(ctx, c.repoPath, c.Path, true); err != nil {
		c.manager.logger.Warn("worktree remove failed, falling back to directory removal",
			"worktree", c.Path, "error", err)
		failed = true
	}
	if err := os.RemoveAll(c.tempDir); err != nil {
		c.manager.logger.Error("failed to remove checkout directory",
			"path", c.tempDir, "error", err)
		failed = true
	}

	if failed {
		return fmt.Errorf("%w: %s", driven.ErrCleanupFailed, c.tempDir)
	}
	return nil
}

// errorMessage flattens an error for persistence in a status record.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
