package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

func browseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Inspect the contents of a hosted repository",
	}
	cmd.AddCommand(browseBranchesCmd(), browseTagsCmd(), browseLogCmd(), browseTreeCmd(), browseCatCmd())
	return cmd
}

// loadRepoPath resolves a repository ID to its on-disk storage path.
func loadRepoPath(cmd *cobra.Command, a *app, arg string) (*model.Repository, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	repo, err := a.repoStore.GetByID(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("repository %d not found", id)
	}
	return repo, nil
}

func browseBranchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branches <repository-id>",
		Short: "List branches",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			repo, err := loadRepoPath(cmd, a, args[0])
			if err != nil {
				return err
			}
			refs, err := a.git.ListBranches(cmd.Context(), repo.LocalPath)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				marker := " "
				if ref.Name == repo.DefaultBranch {
					marker = "*"
				}
				printf(cmd, "%s %-40s %s", marker, ref.Name, ref.CommitHash)
			}
			return nil
		}),
	}
}

func browseTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags <repository-id>",
		Short: "List tags",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			repo, err := loadRepoPath(cmd, a, args[0])
			if err != nil {
				return err
			}
			refs, err := a.git.ListTags(cmd.Context(), repo.LocalPath)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				printf(cmd, "%-40s %s", ref.Name, ref.CommitHash)
			}
			return nil
		}),
	}
}

func browseLogCmd() *cobra.Command {
	var (
		ref   string
		limit int
		skip  int
	)
	cmd := &cobra.Command{
		Use:   "log <repository-id>",
		Short: "Show commit history",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			repo, err := loadRepoPath(cmd, a, args[0])
			if err != nil {
				return err
			}
			commits, err := a.git.Commits(cmd.Context(), repo.LocalPath, ref, limit, skip)
			if err != nil {
				return err
			}
			for _, c := range commits {
				when := time.Unix(c.CommittedAtUTC, 0).UTC().Format(time.RFC3339)
				printf(cmd, "%s %s %s <%s> %s", c.Hash[:12], when, c.AuthorName, c.AuthorEmail, c.Summary)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&ref, "ref", "HEAD", "branch, tag, or commit to walk from")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum commits to show")
	cmd.Flags().IntVar(&skip, "skip", 0, "commits to skip for pagination")
	return cmd
}

func browseTreeCmd() *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "tree <repository-id> [dir]",
		Short: "List a directory of the repository tree",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			repo, err := loadRepoPath(cmd, a, args[0])
			if err != nil {
				return err
			}
			dir := ""
			if len(args) == 2 {
				dir = args[1]
			}
			entries, err := a.git.ListTree(cmd.Context(), repo.LocalPath, ref, dir)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				printf(cmd, "%-4s %s %s", entry.Type, entry.Hash, entry.Path)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&ref, "ref", "HEAD", "branch, tag, or commit to read")
	return cmd
}

func browseCatCmd() *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "cat <repository-id> <path>",
		Short: "Print a file at a reference",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			repo, err := loadRepoPath(cmd, a, args[0])
			if err != nil {
				return err
			}
			content, err := a.git.FileContent(cmd.Context(), repo.LocalPath, ref, args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		}),
	}
	cmd.Flags().StringVar(&ref, "ref", "HEAD", "branch, tag, or commit to read")
	return cmd
}
