package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/tastenmo/spienx-hub/internal/adapter/driven/dispatch"
	"github.com/tastenmo/spienx-hub/internal/adapter/driven/gitcli"
	githubadapter "github.com/tastenmo/spienx-hub/internal/adapter/driven/github"
	"github.com/tastenmo/spienx-hub/internal/adapter/driven/markdown"
	sqliteadapter "github.com/tastenmo/spienx-hub/internal/adapter/driven/sqlite"
	"github.com/tastenmo/spienx-hub/internal/application"
	"github.com/tastenmo/spienx-hub/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:           "spienxhub",
		Short:         "Multi-tenant Git hosting and documentation build platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(),
		repoCmd(),
		mirrorCmd(),
		browseCmd(),
		buildCmd(),
		accessCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// app bundles the wired services behind every command.
type app struct {
	cfg        *config.Config
	db         *sqliteadapter.DB
	logger     *slog.Logger
	dispatcher *dispatch.InProc
	git        *gitcli.Client

	repoStore *sqliteadapter.RepoRepo
	orgStore  *sqliteadapter.OrgRepo
	docStore  *sqliteadapter.DocRepo

	lifecycle *application.LifecycleManager
	tracker   *application.SyncTracker
	resolver  *application.AccessResolver
	ingest    *application.IngestEngine
	scheduler *application.SyncScheduler
}

// newApp is the composition root: config, database, migrations, stores,
// collaborators, services. The returned cleanup drains in-flight dispatcher
// tasks and closes the database.
func newApp() (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.Default()

	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	repoStore := sqliteadapter.NewRepoRepo(db)
	orgStore := sqliteadapter.NewOrgRepo(db)
	policyStore := sqliteadapter.NewPolicyRepo(db)
	taskStore := sqliteadapter.NewSyncTaskRepo(db)
	docStore := sqliteadapter.NewDocRepo(db)

	git, err := gitcli.New(logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	probe := githubadapter.NewProbe(cfg.GitHubToken)
	dispatcher := dispatch.New(logger)
	renderer := markdown.New(logger)

	tracker := application.NewSyncTracker(taskStore, logger)
	lifecycle := application.NewLifecycleManager(
		repoStore, tracker, git, probe, dispatcher, cfg.ReposRoot, logger)
	worktrees := application.NewWorktreeManager(git, logger)
	resolver := application.NewAccessResolver(orgStore, policyStore, logger)
	ingest := application.NewIngestEngine(docStore, repoStore, worktrees, git, renderer, logger)
	scheduler := application.NewSyncScheduler(lifecycle, cfg.SyncPollInterval, cfg.SyncFailureCap, logger)

	a := &app{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		dispatcher: dispatcher,
		git:        git,
		repoStore:  repoStore,
		orgStore:   orgStore,
		docStore:   docStore,
		lifecycle:  lifecycle,
		tracker:    tracker,
		resolver:   resolver,
		ingest:     ingest,
		scheduler:  scheduler,
	}
	cleanup := func() {
		a.dispatcher.Wait()
		if err := a.db.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}
	return a, cleanup, nil
}

// withApp wraps a command body with composition-root setup and teardown.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()
		return fn(cmd, args, a)
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
