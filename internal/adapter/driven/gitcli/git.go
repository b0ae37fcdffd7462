// Package gitcli implements the GitClient port by shelling out to the git
// binary. Every operation spawns a fresh subprocess; no repository state is
// held between calls.
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitClient = (*Client)(nil)

// Client runs git commands via the local git executable.
type Client struct {
	gitPath string
	logger  *slog.Logger
}

// New locates the git binary on PATH and returns a Client.
func New(logger *slog.Logger) (*Client, error) {
	p, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("no 'git' program on path: %w", err)
	}
	return &Client{gitPath: p, logger: logger}, nil
}

// run executes git with args in dir and returns trimmed stdout. A nonzero
// exit is wrapped in ErrExternalTool together with the tool's stderr.
func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.gitPath, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("running git", "args", args, "dir", dir)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Whatever the tool said before being killed is the only
			// diagnostic there is; keep it.
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return "", fmt.Errorf("git %s: %w: %s", args[0], ctxErr, msg)
			}
			return "", fmt.Errorf("git %s: %w", args[0], ctxErr)
		}
		return "", fmt.Errorf("git %s: %w: %s",
			args[0], driven.ErrExternalTool, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (c *Client) InitBare(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}
	_, err := c.run(ctx, path, "init", "--bare")
	return err
}

func (c *Client) CloneMirror(ctx context.Context, url, path string) error {
	_, err := c.run(ctx, "", "clone", "--mirror", url, path)
	return err
}

func (c *Client) Clone(ctx context.Context, url, path string, bare bool) error {
	args := []string{"clone"}
	if bare {
		args = append(args, "--bare")
	}
	args = append(args, url, path)
	_, err := c.run(ctx, "", args...)
	return err
}

func (c *Client) FetchPrune(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", driven.ErrRepositoryMissing, path)
	}
	_, err := c.run(ctx, path, "fetch", "--all", "--prune")
	return err
}

func (c *Client) IsRepository(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	_, err := c.run(ctx, path, "rev-parse", "--git-dir")
	return err == nil
}

func (c *Client) WorktreeAdd(ctx context.Context, repoPath, worktreePath, ref string) error {
	if !c.IsRepository(ctx, repoPath) {
		return fmt.Errorf("%w: %s", driven.ErrInvalidRepository, repoPath)
	}
	if _, err := c.run(ctx, repoPath, "worktree", "add", "--detach", worktreePath, ref); err != nil {
		return fmt.Errorf("%w: ref %q: %v", driven.ErrCheckoutFailed, ref, err)
	}
	return nil
}

func (c *Client) WorktreeRemove(ctx context.Context, repoPath, worktreePath string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, worktreePath)
	if _, err := c.run(ctx, repoPath, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", driven.ErrCleanupFailed, worktreePath, err)
	}
	return nil
}

func (c *Client) HeadCommit(ctx context.Context, path string) (string, error) {
	return c.run(ctx, path, "rev-parse", "HEAD")
}

// Describe prefers an annotated-tag description and falls back to the short
// commit hash for repositories without tags.
func (c *Client) Describe(ctx context.Context, path string) (string, error) {
	out, err := c.run(ctx, path, "describe", "--tags", "--always")
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) CountCommits(ctx context.Context, path string) (int, error) {
	out, err := c.run(ctx, path, "rev-list", "--count", "--all")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse commit count %q: %w", out, err)
	}
	return n, nil
}

func (c *Client) DefaultBranch(ctx context.Context, path string) (string, error) {
	out, err := c.run(ctx, path, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) ListBranches(ctx context.Context, path string) ([]driven.RefInfo, error) {
	return c.listRefs(ctx, path, "refs/heads/")
}

func (c *Client) ListTags(ctx context.Context, path string) ([]driven.RefInfo, error) {
	return c.listRefs(ctx, path, "refs/tags/")
}

func (c *Client) listRefs(ctx context.Context, path, prefix string) ([]driven.RefInfo, error) {
	out, err := c.run(ctx, path,
		"for-each-ref", "--format=%(refname:short) %(objectname)", prefix)
	if err != nil {
		return nil, err
	}
	var refs []driven.RefInfo
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		name, hash, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		refs = append(refs, driven.RefInfo{Name: name, CommitHash: hash})
	}
	return refs, nil
}

// commitFieldSep and commitRecordSep are control characters unlikely to
// appear in commit messages, used to delimit the pretty-format output.
const (
	commitFieldSep  = "\x1f"
	commitRecordSep = "\x1e"
)

func (c *Client) Commits(ctx context.Context, path, ref string, limit, skip int) ([]driven.CommitInfo, error) {
	format := strings.Join([]string{"%H", "%an", "%ae", "%s", "%B", "%ct", "%P"}, commitFieldSep)
	args := []string{
		"log",
		"--pretty=format:" + format + commitRecordSep,
		fmt.Sprintf("--max-count=%d", limit),
		fmt.Sprintf("--skip=%d", skip),
		ref,
	}
	out, err := c.run(ctx, path, args...)
	if err != nil {
		return nil, err
	}

	var commits []driven.CommitInfo
	for _, record := range strings.Split(out, commitRecordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, commitFieldSep)
		if len(fields) != 7 {
			return nil, fmt.Errorf("unexpected git log record with %d fields", len(fields))
		}
		committedAt, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse commit timestamp %q: %w", fields[5], err)
		}
		var parents []string
		if fields[6] != "" {
			parents = strings.Fields(fields[6])
		}
		commits = append(commits, driven.CommitInfo{
			Hash:           fields[0],
			AuthorName:     fields[1],
			AuthorEmail:    fields[2],
			Summary:        fields[3],
			Message:        strings.TrimSpace(fields[4]),
			CommittedAtUTC: committedAt,
			Parents:        parents,
		})
	}
	return commits, nil
}

func (c *Client) FileContent(ctx context.Context, path, ref, filePath string) (string, error) {
	return c.run(ctx, path, "show", ref+":"+filePath)
}

func (c *Client) ListTree(ctx context.Context, path, ref, dir string) ([]driven.TreeEntry, error) {
	spec := ref
	if dir != "" {
		spec = ref + ":" + strings.TrimSuffix(dir, "/")
	}
	out, err := c.run(ctx, path, "ls-tree", spec)
	if err != nil {
		return nil, err
	}

	var entries []driven.TreeEntry
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		// <mode> SP <type> SP <hash> TAB <name>
		meta, name, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		parts := strings.Fields(meta)
		if len(parts) != 3 {
			continue
		}
		entryPath := name
		if dir != "" {
			entryPath = strings.TrimSuffix(dir, "/") + "/" + name
		}
		entries = append(entries, driven.TreeEntry{
			Name: name,
			Path: entryPath,
			Type: parts[1],
			Hash: parts[2],
		})
	}
	return entries, nil
}
