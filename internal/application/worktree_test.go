package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

func TestWorktreeManager_AcquireBare(t *testing.T) {
	ctx := context.Background()
	var addedRepo, addedRef string
	git := &fakeGitClient{
		worktreeAddFn: func(_ context.Context, repoPath, worktreePath, ref string) error {
			addedRepo, addedRef = repoPath, ref
			return os.MkdirAll(worktreePath, 0o755)
		},
	}
	m := NewWorktreeManager(git, discardLogger())
	repo := &model.Repository{LocalPath: "/srv/repos/1/website", IsBare: true}

	checkout, err := m.Acquire(ctx, repo, "v1.0.0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = checkout.Release(ctx) })

	assert.Equal(t, "/srv/repos/1/website", addedRepo)
	assert.Equal(t, "v1.0.0", addedRef)
	assert.DirExists(t, checkout.Path)
	assert.NotEqual(t, repo.LocalPath, checkout.Path)
}

func TestWorktreeManager_AcquireDefaultsToHead(t *testing.T) {
	ctx := context.Background()
	var addedRef string
	git := &fakeGitClient{
		worktreeAddFn: func(_ context.Context, _, worktreePath, ref string) error {
			addedRef = ref
			return os.MkdirAll(worktreePath, 0o755)
		},
	}
	m := NewWorktreeManager(git, discardLogger())

	checkout, err := m.Acquire(ctx, &model.Repository{LocalPath: "/x", IsBare: true}, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = checkout.Release(ctx) })

	assert.Equal(t, "HEAD", addedRef)
}

func TestWorktreeManager_NonBareReturnsWorkingDirectory(t *testing.T) {
	ctx := context.Background()
	git := &fakeGitClient{
		worktreeAddFn: func(context.Context, string, string, string) error {
			t.Fatal("no worktree must be created for a non-bare repository")
			return nil
		},
	}
	m := NewWorktreeManager(git, discardLogger())
	repo := &model.Repository{LocalPath: "/srv/work/website", IsBare: false}

	checkout, err := m.Acquire(ctx, repo, "")
	require.NoError(t, err)

	assert.Equal(t, repo.LocalPath, checkout.Path)
	assert.NoError(t, checkout.Release(ctx), "release is a no-op for non-bare repositories")
}

func TestWorktreeManager_InvalidRepository(t *testing.T) {
	git := &fakeGitClient{
		isRepositoryFn: func(context.Context, string) bool { return false },
	}
	m := NewWorktreeManager(git, discardLogger())

	_, err := m.Acquire(context.Background(), &model.Repository{LocalPath: "/nope", IsBare: true}, "")
	assert.ErrorIs(t, err, driven.ErrInvalidRepository)
}

func TestWorktreeManager_CheckoutFailureRemovesTempDir(t *testing.T) {
	var tempParent string
	git := &fakeGitClient{
		worktreeAddFn: func(_ context.Context, _, worktreePath, _ string) error {
			tempParent = worktreePath
			return fmt.Errorf("%w: bad ref", driven.ErrCheckoutFailed)
		},
	}
	m := NewWorktreeManager(git, discardLogger())

	_, err := m.Acquire(context.Background(), &model.Repository{LocalPath: "/x", IsBare: true}, "bad")
	assert.ErrorIs(t, err, driven.ErrCheckoutFailed)
	assert.NoDirExists(t, tempParent)
}

func TestCheckout_ReleaseRemovesDirectory(t *testing.T) {
	ctx := context.Background()
	git := &fakeGitClient{
		worktreeAddFn: func(_ context.Context, _, worktreePath, _ string) error {
			return os.MkdirAll(worktreePath, 0o755)
		},
	}
	m := NewWorktreeManager(git, discardLogger())

	checkout, err := m.Acquire(ctx, &model.Repository{LocalPath: "/x", IsBare: true}, "")
	require.NoError(t, err)

	require.NoError(t, checkout.Release(ctx))
	assert.NoDirExists(t, checkout.tempDir)

	// A second release is a no-op.
	assert.NoError(t, checkout.Release(ctx))
}

func TestCheckout_ReleaseRemovesDirectoryEvenWhenWorktreeRemoveFails(t *testing.T) {
	ctx := context.Background()
	git := &fakeGitClient{
		worktreeAddFn: func(_ context.Context, _, worktreePath, _ string) error {
			return os.MkdirAll(worktreePath, 0o755)
		},
		worktreeRmFn: func(context.Context, string, string, bool) error {
			return errors.New("worktree metadata locked")
		},
	}
	m := NewWorktreeManager(git, discardLogger())

	checkout, err := m.Acquire(ctx, &model.Repository{LocalPath: "/x", IsBare: true}, "")
	require.NoError(t, err)

	err = checkout.Release(ctx)
	assert.ErrorIs(t, err, driven.ErrCleanupFailed)
	assert.NoDirExists(t, checkout.tempDir, "directory removal runs even when the worktree command fails")
}
