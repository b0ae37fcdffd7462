package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the auto-sync scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.logger.Info("starting scheduler",
				"poll_interval", a.cfg.SyncPollInterval, "failure_cap", a.cfg.SyncFailureCap)
			a.scheduler.Start(ctx)
			return nil
		}),
	}
}

func repoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage hosted repositories",
	}
	cmd.AddCommand(repoCreateCmd(), repoInitCmd(), repoMigrateCmd(), repoImportCmd(), repoShowCmd())
	return cmd
}

func repoCreateCmd() *cobra.Command {
	var (
		description string
		isPublic    bool
	)
	cmd := &cobra.Command{
		Use:   "create <organisation-id> <name>",
		Short: "Record a new bare repository in pending state",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			orgID, err := parseID(args[0])
			if err != nil {
				return err
			}
			repo, err := a.lifecycle.CreateRepository(cmd.Context(), orgID, args[1], description, isPublic, nil)
			if err != nil {
				return err
			}
			printf(cmd, "repository %d created at %s", repo.ID, repo.LocalPath)
			return nil
		}),
	}
	cmd.Flags().StringVar(&description, "description", "", "repository description")
	cmd.Flags().BoolVar(&isPublic, "public", false, "grant read access to everyone")
	return cmd
}

func repoInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <repository-id>",
		Short: "Initialize the on-disk bare repository for a pending record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.lifecycle.InitializeBare(cmd.Context(), id); err != nil {
				return err
			}
			printf(cmd, "repository %d initialized", id)
			return nil
		}),
	}
}

func repoMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <repository-id> <new-organisation-id>",
		Short: "Move a repository to another organisation",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			repoID, err := parseID(args[0])
			if err != nil {
				return err
			}
			orgID, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := a.lifecycle.MigrateToOrganisation(cmd.Context(), repoID, orgID); err != nil {
				return err
			}
			printf(cmd, "repository %d migrated to organisation %d", repoID, orgID)
			return nil
		}),
	}
}

func repoImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <organisation-id> <name> <source-url>",
		Short: "Clone an external repository and take over hosting it",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			orgID, err := parseID(args[0])
			if err != nil {
				return err
			}
			repo, err := a.lifecycle.MigrateFromExternal(cmd.Context(), orgID, args[1], args[2])
			if err != nil {
				return err
			}
			printf(cmd, "repository %d imported from %s (%d commits)", repo.ID, args[2], repo.TotalCommits)
			return nil
		}),
	}
}

func repoShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <repository-id>",
		Short: "Print a repository record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			repo, err := a.repoStore.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if repo == nil {
				return fmt.Errorf("repository %d not found", id)
			}
			printf(cmd, "id:             %d", repo.ID)
			printf(cmd, "organisation:   %d", repo.OrganisationID)
			printf(cmd, "name:           %s", repo.Name)
			printf(cmd, "kind:           %s", repo.Kind)
			printf(cmd, "status:         %s", repo.Status)
			printf(cmd, "path:           %s", repo.LocalPath)
			printf(cmd, "default branch: %s", repo.DefaultBranch)
			printf(cmd, "total commits:  %d", repo.TotalCommits)
			if repo.ErrorMessage != "" {
				printf(cmd, "last error:     %s", repo.ErrorMessage)
			}
			return nil
		}),
	}
}

func mirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Manage mirror repositories",
	}
	cmd.AddCommand(mirrorCreateCmd(), mirrorCloneCmd(), mirrorSyncCmd())
	return cmd
}

func mirrorCreateCmd() *cobra.Command {
	var (
		sourceType string
		autoSync   bool
		interval   int
	)
	cmd := &cobra.Command{
		Use:   "create <organisation-id> <name> <source-url>",
		Short: "Record a new mirror repository",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			orgID, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := parseSourceType(sourceType)
			if err != nil {
				return err
			}
			mirror, err := a.lifecycle.CreateMirror(cmd.Context(), orgID, args[1], args[2], st, autoSync, interval)
			if err != nil {
				return err
			}
			printf(cmd, "mirror %d created, run `spienxhub mirror clone %d` to fetch it",
				mirror.Repository.ID, mirror.Repository.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&sourceType, "source-type", string(model.SourceCustom), "source host: github, gitlab, gitea, bitbucket, custom")
	cmd.Flags().BoolVar(&autoSync, "auto-sync", true, "include in scheduled syncs")
	cmd.Flags().IntVar(&interval, "interval", 3600, "seconds between scheduled syncs")
	return cmd
}

func mirrorCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <repository-id>",
		Short: "Perform the initial full-mirror clone",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.lifecycle.CloneMirror(cmd.Context(), id); err != nil {
				return err
			}
			printf(cmd, "mirror %d cloned", id)
			return nil
		}),
	}
}

func mirrorSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <repository-id>",
		Short: "Fetch all refs with prune and record a sync task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			taskID, err := a.lifecycle.DispatchSync(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.dispatcher.Wait()

			tasks, err := a.tracker.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, task := range tasks {
				if task.ID != taskID {
					continue
				}
				if task.Status == model.SyncStatusCompleted {
					printf(cmd, "mirror %d synced, %d new commits", id, task.CommitsSynced)
					return nil
				}
				return fmt.Errorf("sync failed: %s", task.ErrorMessage)
			}
			return fmt.Errorf("sync task %d not found", taskID)
		}),
	}
}

func buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Manage documentation builds",
	}
	cmd.AddCommand(buildDocCmd(), buildRunCmd())
	return cmd
}

func buildDocCmd() *cobra.Command {
	var (
		reference string
		confPath  string
	)
	cmd := &cobra.Command{
		Use:   "add-document <repository-id> <title>",
		Short: "Register a documentation document on a repository",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			repoID, err := parseID(args[0])
			if err != nil {
				return err
			}
			docID, err := a.docStore.AddDocument(cmd.Context(), model.Document{
				Title:        args[1],
				RepositoryID: repoID,
				Reference:    reference,
				ConfPath:     confPath,
			})
			if err != nil {
				return err
			}
			printf(cmd, "document %d registered", docID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reference, "ref", "", "git reference to build (default HEAD)")
	cmd.Flags().StringVar(&confPath, "conf-path", "docs", "configuration directory relative to the checkout")
	return cmd
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <document-id>",
		Short: "Create a build for a document and ingest its rendered output",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			docID, err := parseID(args[0])
			if err != nil {
				return err
			}
			buildID, err := a.docStore.AddBuild(cmd.Context(), model.Build{DocumentID: docID})
			if err != nil {
				return err
			}
			if !a.ingest.RunBuild(cmd.Context(), buildID) {
				return fmt.Errorf("build %d failed", buildID)
			}

			build, err := a.docStore.GetBuild(cmd.Context(), buildID)
			if err != nil {
				return err
			}
			printf(cmd, "build %d completed, version %s", buildID, build.Version)
			return nil
		}),
	}
}

func accessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Inspect access control",
	}
	cmd.AddCommand(accessResolveCmd())
	return cmd
}

func accessResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <user-id> <repository-id>",
		Short: "Print a user's effective permission on a repository",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			repoID, err := parseID(args[1])
			if err != nil {
				return err
			}

			user, err := a.orgStore.GetUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			repo, err := a.repoStore.GetByID(cmd.Context(), repoID)
			if err != nil {
				return err
			}

			permission, err := a.resolver.Resolve(cmd.Context(), user, repo)
			if err != nil {
				return err
			}
			printf(cmd, "%s", permission)
			return nil
		}),
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseSourceType(s string) (model.SourceType, error) {
	switch st := model.SourceType(s); st {
	case model.SourceGitHub, model.SourceGitLab, model.SourceGitea, model.SourceBitbucket, model.SourceCustom:
		return st, nil
	default:
		return "", fmt.Errorf("unknown source type %q", s)
	}
}
