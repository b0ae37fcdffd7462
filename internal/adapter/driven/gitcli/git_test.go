package gitcli

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	c, err := New(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	require.NoError(t, err)
	return c
}

// initSourceRepo creates a repository with two commits on main and one tag.
func initSourceRepo(t *testing.T, c *Client) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	mustRun := func(args ...string) {
		_, err := c.run(ctx, dir, args...)
		require.NoError(t, err, "git %v", args)
	}

	mustRun("init", "--initial-branch=main")
	mustRun("config", "user.name", "Test User")
	mustRun("config", "user.email", "test@example.com")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hello\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "intro.md"), []byte("intro\n"), 0o644))
	mustRun("add", ".")
	mustRun("commit", "-m", "initial commit")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hello world\n"), 0o644))
	mustRun("add", ".")
	mustRun("commit", "-m", "update readme")
	mustRun("tag", "v0.1.0")

	return dir
}

func TestClient_InitBare(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "repo.git")

	require.NoError(t, c.InitBare(ctx, path))
	assert.True(t, c.IsRepository(ctx, path))

	count, err := c.CountCommits(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestClient_IsRepository_NonRepo(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	assert.False(t, c.IsRepository(ctx, filepath.Join(t.TempDir(), "nope")))

	empty := t.TempDir()
	assert.False(t, c.IsRepository(ctx, empty))
}

func TestClient_CloneMirrorAndFetch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	src := initSourceRepo(t, c)
	dst := filepath.Join(t.TempDir(), "mirror.git")

	require.NoError(t, c.CloneMirror(ctx, src, dst))
	assert.True(t, c.IsRepository(ctx, dst))

	count, err := c.CountCommits(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, c.FetchPrune(ctx, dst))
}

func TestClient_FetchPrune_MissingDirectory(t *testing.T) {
	c := newTestClient(t)

	err := c.FetchPrune(context.Background(), filepath.Join(t.TempDir(), "gone"))
	assert.ErrorIs(t, err, driven.ErrRepositoryMissing)
}

func TestClient_HeadDescribeDefaultBranch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	src := initSourceRepo(t, c)

	head, err := c.HeadCommit(ctx, src)
	require.NoError(t, err)
	assert.Len(t, head, 40)

	branch, err := c.DefaultBranch(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	version, err := c.Describe(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0", version)
}

func TestClient_Describe_NoTagsFallsBackToHash(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := c.run(ctx, dir, "init", "--initial-branch=main")
	require.NoError(t, err)
	_, err = c.run(ctx, dir, "config", "user.name", "Test User")
	require.NoError(t, err)
	_, err = c.run(ctx, dir, "config", "user.email", "test@example.com")
	require.NoError(t, err)
	_, err = c.run(ctx, dir, "commit", "--allow-empty", "-m", "only commit")
	require.NoError(t, err)

	version, err := c.Describe(ctx, dir)
	require.NoError(t, err)
	assert.NotEmpty(t, version)
	assert.NotContains(t, version, "v")
}

func TestClient_ListRefs(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	src := initSourceRepo(t, c)

	branches, err := c.ListBranches(ctx, src)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, "main", branches[0].Name)
	assert.Len(t, branches[0].CommitHash, 40)

	tags, err := c.ListTags(ctx, src)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "v0.1.0", tags[0].Name)
}

func TestClient_Commits(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	src := initSourceRepo(t, c)

	commits, err := c.Commits(ctx, src, "main", 10, 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, "update readme", commits[0].Summary)
	assert.Equal(t, "Test User", commits[0].AuthorName)
	assert.Equal(t, "test@example.com", commits[0].AuthorEmail)
	assert.NotZero(t, commits[0].CommittedAtUTC)
	require.Len(t, commits[0].Parents, 1)
	assert.Equal(t, commits[1].Hash, commits[0].Parents[0])
	assert.Empty(t, commits[1].Parents)

	// Pagination skips the newest commit.
	page, err := c.Commits(ctx, src, "main", 10, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "initial commit", page[0].Summary)
}

func TestClient_FileContentAndTree(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	src := initSourceRepo(t, c)

	content, err := c.FileContent(ctx, src, "main", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "# hello world", content)

	root, err := c.ListTree(ctx, src, "main", "")
	require.NoError(t, err)
	require.Len(t, root, 2)

	byName := map[string]driven.TreeEntry{}
	for _, e := range root {
		byName[e.Name] = e
	}
	assert.Equal(t, "blob", byName["README.md"].Type)
	assert.Equal(t, "tree", byName["docs"].Type)

	docs, err := c.ListTree(ctx, src, "main", "docs")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "intro.md", docs[0].Name)
	assert.Equal(t, "docs/intro.md", docs[0].Path)
}

func TestClient_Worktree(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	src := initSourceRepo(t, c)
	worktree := filepath.Join(t.TempDir(), "wt")

	require.NoError(t, c.WorktreeAdd(ctx, src, worktree, "main"))
	_, err := os.Stat(filepath.Join(worktree, "README.md"))
	require.NoError(t, err)

	require.NoError(t, c.WorktreeRemove(ctx, src, worktree, true))
	_, err = os.Stat(worktree)
	assert.True(t, os.IsNotExist(err))
}

func TestClient_WorktreeAdd_BadRef(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	src := initSourceRepo(t, c)

	err := c.WorktreeAdd(ctx, src, filepath.Join(t.TempDir(), "wt"), "no-such-ref")
	assert.ErrorIs(t, err, driven.ErrCheckoutFailed)
}

func TestClient_WorktreeAdd_InvalidRepository(t *testing.T) {
	c := newTestClient(t)

	err := c.WorktreeAdd(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "wt"), "main")
	assert.ErrorIs(t, err, driven.ErrInvalidRepository)
}

func TestClient_Run_TimeoutCarriesStderr(t *testing.T) {
	// A stand-in git that reports progress on stderr and then hangs, like a
	// clone against an unresponsive remote.
	script := filepath.Join(t.TempDir(), "slowgit")
	require.NoError(t, os.WriteFile(script,
		[]byte("#!/bin/sh\necho 'fatal: the remote end hung up unexpectedly' >&2\nsleep 30\n"), 0o755))

	c := &Client{
		gitPath: script,
		logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.run(ctx, "", "clone")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "remote end hung up",
		"the tool diagnostic survives the timeout")
}
