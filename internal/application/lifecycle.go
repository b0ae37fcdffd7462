package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	cp "github.com/otiai10/copy"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// externalCloneTimeout bounds the wall-clock time of a cross-host migration
// clone subprocess.
const externalCloneTimeout = 300 * time.Second

// ErrInvalidName indicates a repository name sanitizes to the empty string.
var ErrInvalidName = errors.New("repository name contains no usable characters")

// LifecycleManager orchestrates repository state transitions: create, bare
// initialization, mirror clone and sync, and migrations. Git work is
// delegated to the GitClient; failures are recorded on the repository record
// and returned so the dispatcher can decide on retries.
type LifecycleManager struct {
	repos      driven.RepoStore
	tracker    *SyncTracker
	git        driven.GitClient
	probe      driven.SourceProbe
	dispatcher driven.TaskDispatcher
	logger     *slog.Logger
	reposRoot  string
	now        func() time.Time
}

// NewLifecycleManager creates a LifecycleManager. reposRoot is the directory
// under which repository storage paths are namespaced per organisation.
// probe may be nil; github mirror sources are then cloned unverified.
func NewLifecycleManager(
	repos driven.RepoStore,
	tracker *SyncTracker,
	git driven.GitClient,
	probe driven.SourceProbe,
	dispatcher driven.TaskDispatcher,
	reposRoot string,
	logger *slog.Logger,
) *LifecycleManager {
	return &LifecycleManager{
		repos:      repos,
		tracker:    tracker,
		git:        git,
		probe:      probe,
		dispatcher: dispatcher,
		reposRoot:  reposRoot,
		logger:     logger,
		now:        time.Now,
	}
}

// localPath computes the storage path for a repository name under an
// organisation, sanitizing the name first.
func (m *LifecycleManager) localPath(organisationID int64, name string) (string, string, error) {
	safeName := model.SanitizeName(name)
	if safeName == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return safeName, filepath.Join(m.reposRoot, strconv.FormatInt(organisationID, 10), safeName), nil
}

// CreateRepository records a new bare repository in pending state. The name
// is kept as given; the storage path uses its sanitized form.
func (m *LifecycleManager) CreateRepository(ctx context.Context, organisationID int64, name, description string, isPublic bool, ownerID *int64) (*model.Repository, error) {
	_, localPath, err := m.localPath(organisationID, name)
	if err != nil {
		return nil, err
	}

	repo := model.Repository{
		OrganisationID: organisationID,
		Name:           name,
		Description:    description,
		Kind:           model.RepoKindBare,
		Status:         model.RepoStatusPending,
		LocalPath:      localPath,
		IsBare:         true,
		IsPublic:       isPublic,
		OwnerID:        ownerID,
	}
	id, err := m.repos.Add(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("create repository %s: %w", name, err)
	}
	repo.ID = id

	m.logger.Info("repository created", "repository", id, "name", name, "path", localPath)
	return &repo, nil
}

// InitializeBare creates the on-disk bare repository for a pending record.
// Initialization failure is non-recoverable for a content-less repository:
// the record is deleted and the partial directory removed.
func (m *LifecycleManager) InitializeBare(ctx context.Context, repositoryID int64) error {
	repo, err := m.loadRepo(ctx, repositoryID)
	if err != nil {
		return err
	}

	repo.Status = model.RepoStatusInitializing
	if err := m.repos.Update(ctx, *repo); err != nil {
		return fmt.Errorf("update repository %d: %w", repositoryID, err)
	}

	if err := m.git.InitBare(ctx, repo.LocalPath); err != nil {
		m.logger.Error("bare init failed, deleting repository record",
			"repository", repositoryID, "path", repo.LocalPath, "error", err)
		if rmErr := os.RemoveAll(repo.LocalPath); rmErr != nil {
			m.logger.Warn("failed to remove partial repository directory",
				"path", repo.LocalPath, "error", rmErr)
		}
		if delErr := m.repos.Delete(ctx, repositoryID); delErr != nil {
			m.logger.Error("failed to delete repository record after init failure",
				"repository", repositoryID, "error", delErr)
		}
		return err
	}

	repo.Status = model.RepoStatusActive
	repo.ErrorMessage = ""
	if err := m.repos.Update(ctx, *repo); err != nil {
		return fmt.Errorf("update repository %d: %w", repositoryID, err)
	}

	m.logger.Info("repository initialized", "repository", repositoryID, "path", repo.LocalPath)
	return nil
}

// CreateMirror records a new mirror repository in pending state together with
// its mirror settings. The initial clone is performed by CloneMirror,
// typically via DispatchClone.
func (m *LifecycleManager) CreateMirror(ctx context.Context, organisationID int64, name, sourceURL string, sourceType model.SourceType, autoSync bool, syncIntervalSeconds int) (*model.Mirror, error) {
	_, localPath, err := m.localPath(organisationID, name)
	if err != nil {
		return nil, err
	}

	repo := model.Repository{
		OrganisationID: organisationID,
		Name:           name,
		Kind:           model.RepoKindMirror,
		Status:         model.RepoStatusPending,
		LocalPath:      localPath,
		IsBare:         true,
	}
	id, err := m.repos.Add(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("create mirror %s: %w", name, err)
	}
	repo.ID = id

	settings := model.MirrorSettings{
		RepositoryID:        id,
		SourceURL:           sourceURL,
		SourceType:          sourceType,
		AutoSync:            autoSync,
		SyncIntervalSeconds: syncIntervalSeconds,
	}
	if err := m.repos.SetMirrorSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("set mirror settings for %d: %w", id, err)
	}

	m.logger.Info("mirror created", "repository", id, "name", name, "source", sourceURL)
	return &model.Mirror{Repository: repo, Settings: settings}, nil
}

// CloneMirror performs the initial full-mirror clone of a mirror repository.
// On failure the record is kept with an incremented failure counter and the
// partial clone directory is removed.
func (m *LifecycleManager) CloneMirror(ctx context.Context, repositoryID int64) error {
	mirror, err := m.loadMirror(ctx, repositoryID)
	if err != nil {
		return err
	}

	if mirror.Settings.SourceType == model.SourceGitHub && m.probe != nil {
		info, err := m.probe.Probe(ctx, mirror.Settings.SourceURL)
		if err != nil {
			return m.markMirrorFailure(ctx, mirror, fmt.Errorf("probe source: %w", err))
		}
		mirror.Repository.DefaultBranch = info.DefaultBranch
	}

	mirror.Repository.Status = model.RepoStatusInitializing
	if err := m.repos.Update(ctx, mirror.Repository); err != nil {
		return fmt.Errorf("update repository %d: %w", repositoryID, err)
	}

	if err := os.MkdirAll(filepath.Dir(mirror.Repository.LocalPath), 0o755); err != nil {
		return m.markMirrorFailure(ctx, mirror, fmt.Errorf("create storage directory: %w", err))
	}

	if err := m.git.CloneMirror(ctx, mirror.Settings.SourceURL, mirror.Repository.LocalPath); err != nil {
		if rmErr := os.RemoveAll(mirror.Repository.LocalPath); rmErr != nil {
			m.logger.Warn("failed to remove partial clone directory",
				"path", mirror.Repository.LocalPath, "error", rmErr)
		}
		return m.markMirrorFailure(ctx, mirror, err)
	}

	return m.markMirrorSuccess(ctx, mirror)
}

// SyncMirror fetches all refs with prune for an existing mirror. syncTaskID
// may be zero; when set, the task's status mirrors the outcome independently
// of the repository status.
func (m *LifecycleManager) SyncMirror(ctx context.Context, repositoryID, syncTaskID int64) error {
	mirror, err := m.loadMirror(ctx, repositoryID)
	if err != nil {
		m.failTask(ctx, syncTaskID, errorMessage(err))
		return err
	}

	if syncTaskID != 0 {
		if err := m.tracker.Begin(ctx, syncTaskID); err != nil {
			m.logger.Error("failed to begin sync task", "task", syncTaskID, "error", err)
		}
	}

	mirror.Repository.Status = model.RepoStatusMirroring
	if err := m.repos.Update(ctx, mirror.Repository); err != nil {
		m.failTask(ctx, syncTaskID, errorMessage(err))
		return fmt.Errorf("update repository %d: %w", repositoryID, err)
	}

	if _, err := os.Stat(mirror.Repository.LocalPath); os.IsNotExist(err) {
		missingErr := fmt.Errorf("%w: %s", driven.ErrRepositoryMissing, mirror.Repository.LocalPath)
		m.failTask(ctx, syncTaskID, errorMessage(missingErr))
		return m.markMirrorFailure(ctx, mirror, missingErr)
	}

	before, err := m.git.CountCommits(ctx, mirror.Repository.LocalPath)
	baselineKnown := err == nil
	if err != nil {
		m.logger.Warn("failed to count commits before sync",
			"repository", repositoryID, "error", err)
	}

	if err := m.git.FetchPrune(ctx, mirror.Repository.LocalPath); err != nil {
		m.failTask(ctx, syncTaskID, errorMessage(err))
		return m.markMirrorFailure(ctx, mirror, err)
	}

	if err := m.markMirrorSuccess(ctx, mirror); err != nil {
		m.failTask(ctx, syncTaskID, errorMessage(err))
		return err
	}

	if syncTaskID != 0 {
		// Without a pre-fetch baseline the delta would inflate to the full
		// commit count; record zero instead.
		commitsSynced := 0
		if baselineKnown {
			commitsSynced = mirror.Repository.TotalCommits - before
			if commitsSynced < 0 {
				commitsSynced = 0
			}
		}
		if err := m.tracker.Complete(ctx, syncTaskID, commitsSynced); err != nil {
			m.logger.Error("failed to complete sync task", "task", syncTaskID, "error", err)
		}
	}
	return nil
}

// DispatchSync creates a SyncTask and hands SyncMirror to the dispatcher,
// keyed by repository so concurrent dispatches for one mirror never overlap.
// The returned ID identifies the SyncTask audit record.
func (m *LifecycleManager) DispatchSync(ctx context.Context, repositoryID int64) (int64, error) {
	taskID, err := m.tracker.Create(ctx, repositoryID)
	if err != nil {
		return 0, err
	}

	handle, err := m.dispatcher.Dispatch(ctx, repoKey(repositoryID), func(ctx context.Context) error {
		return m.SyncMirror(ctx, repositoryID, taskID)
	})
	if err != nil {
		m.failTask(ctx, taskID, errorMessage(err))
		return 0, fmt.Errorf("dispatch sync for repository %d: %w", repositoryID, err)
	}

	if err := m.tracker.AttachHandle(ctx, taskID, handle); err != nil {
		m.logger.Error("failed to attach task handle", "task", taskID, "error", err)
	}
	return taskID, nil
}

// DispatchClone hands the initial mirror clone to the dispatcher.
func (m *LifecycleManager) DispatchClone(ctx context.Context, repositoryID int64) (string, error) {
	handle, err := m.dispatcher.Dispatch(ctx, repoKey(repositoryID), func(ctx context.Context) error {
		return m.CloneMirror(ctx, repositoryID)
	})
	if err != nil {
		return "", fmt.Errorf("dispatch clone for repository %d: %w", repositoryID, err)
	}
	return handle, nil
}

// MigrateToOrganisation moves a repository to another organisation. The
// directory move happens first; the record is only updated after the move
// succeeds, so a failed move leaves the original record untouched.
func (m *LifecycleManager) MigrateToOrganisation(ctx context.Context, repositoryID, newOrganisationID int64) error {
	repo, err := m.loadRepo(ctx, repositoryID)
	if err != nil {
		return err
	}
	if repo.OrganisationID == newOrganisationID {
		return nil
	}

	_, newPath, err := m.localPath(newOrganisationID, repo.Name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	if err := moveDir(repo.LocalPath, newPath); err != nil {
		return fmt.Errorf("move repository %d to %s: %w", repositoryID, newPath, err)
	}

	oldPath := repo.LocalPath
	repo.OrganisationID = newOrganisationID
	repo.LocalPath = newPath
	if err := m.repos.Update(ctx, *repo); err != nil {
		// Best effort to restore the directory so record and disk agree.
		if mvErr := moveDir(newPath, oldPath); mvErr != nil {
			m.logger.Error("failed to restore repository directory after update failure",
				"repository", repositoryID, "path", newPath, "error", mvErr)
		}
		return fmt.Errorf("update repository %d: %w", repositoryID, err)
	}

	m.logger.Info("repository migrated",
		"repository", repositoryID, "organisation", newOrganisationID, "path", newPath)
	return nil
}

// MigrateFromExternal clones an external repository into a new local path and
// creates the record only after the clone succeeds. The clone subprocess is
// bounded by a 300 second timeout; on failure no record is created and the
// raw tool diagnostic is surfaced.
func (m *LifecycleManager) MigrateFromExternal(ctx context.Context, organisationID int64, name, sourceURL string) (*model.Repository, error) {
	_, localPath, err := m.localPath(organisationID, name)
	if err != nil {
		return nil, err
	}

	cloneCtx, cancel := context.WithTimeout(ctx, externalCloneTimeout)
	defer cancel()

	if err := m.git.Clone(cloneCtx, sourceURL, localPath, true); err != nil {
		if rmErr := os.RemoveAll(localPath); rmErr != nil {
			m.logger.Warn("failed to remove partial clone directory",
				"path", localPath, "error", rmErr)
		}
		return nil, fmt.Errorf("clone %s: %w", sourceURL, err)
	}

	repo := model.Repository{
		OrganisationID: organisationID,
		Name:           name,
		Kind:           model.RepoKindBare,
		Status:         model.RepoStatusActive,
		LocalPath:      localPath,
		IsBare:         true,
	}
	id, err := m.repos.Add(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("create repository %s: %w", name, err)
	}
	repo.ID = id

	if err := m.refreshGitMetadata(ctx, &repo); err != nil {
		m.logger.Warn("failed to refresh git metadata after external migration",
			"repository", id, "error", err)
	}
	if err := m.repos.Update(ctx, repo); err != nil {
		return nil, fmt.Errorf("update repository %d: %w", id, err)
	}

	m.logger.Info("repository migrated from external source",
		"repository", id, "source", sourceURL, "path", localPath)
	return &repo, nil
}

// markMirrorSuccess records a successful clone/sync: metadata refreshed,
// status active, failure counter reset, last_synced_at stamped.
func (m *LifecycleManager) markMirrorSuccess(ctx context.Context, mirror *model.Mirror) error {
	if err := m.refreshGitMetadata(ctx, &mirror.Repository); err != nil {
		m.logger.Warn("failed to refresh git metadata",
			"repository", mirror.Repository.ID, "error", err)
	}

	mirror.Repository.Status = model.RepoStatusActive
	mirror.Repository.ErrorMessage = ""
	if err := m.repos.Update(ctx, mirror.Repository); err != nil {
		return fmt.Errorf("update repository %d: %w", mirror.Repository.ID, err)
	}

	syncedAt := m.now().UTC()
	mirror.Settings.LastSyncedAt = &syncedAt
	mirror.Settings.ConsecutiveFailures = 0
	if err := m.repos.SetMirrorSettings(ctx, mirror.Settings); err != nil {
		return fmt.Errorf("update mirror settings for %d: %w", mirror.Repository.ID, err)
	}

	m.logger.Info("mirror synced",
		"repository", mirror.Repository.ID, "commits", mirror.Repository.TotalCommits)
	return nil
}

// markMirrorFailure records a failed clone/sync: status failed, error message
// set, consecutive failure counter incremented. The original error is
// returned unchanged for the dispatcher's retry decision.
func (m *LifecycleManager) markMirrorFailure(ctx context.Context, mirror *model.Mirror, cause error) error {
	mirror.Repository.Status = model.RepoStatusFailed
	mirror.Repository.ErrorMessage = errorMessage(cause)
	if err := m.repos.Update(ctx, mirror.Repository); err != nil {
		m.logger.Error("failed to record mirror failure",
			"repository", mirror.Repository.ID, "error", err)
	}

	mirror.Settings.ConsecutiveFailures++
	if err := m.repos.SetMirrorSettings(ctx, mirror.Settings); err != nil {
		m.logger.Error("failed to record mirror failure counter",
			"repository", mirror.Repository.ID, "error", err)
	}

	m.logger.Error("mirror operation failed",
		"repository", mirror.Repository.ID,
		"consecutive_failures", mirror.Settings.ConsecutiveFailures,
		"error", cause)
	return cause
}

// refreshGitMetadata updates default branch, head commit, total commits, and
// the branch snapshot from the on-disk repository.
func (m *LifecycleManager) refreshGitMetadata(ctx context.Context, repo *model.Repository) error {
	branch, err := m.git.DefaultBranch(ctx, repo.LocalPath)
	if err == nil {
		repo.DefaultBranch = branch
	}

	head, err := m.git.HeadCommit(ctx, repo.LocalPath)
	if err == nil {
		repo.LastCommitHash = head
	}

	total, err := m.git.CountCommits(ctx, repo.LocalPath)
	if err != nil {
		return fmt.Errorf("count commits: %w", err)
	}
	repo.TotalCommits = total

	refs, err := m.git.ListBranches(ctx, repo.LocalPath)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	branches := make([]model.Branch, 0, len(refs))
	for _, ref := range refs {
		branches = append(branches, model.Branch{
			RepositoryID: repo.ID,
			Name:         ref.Name,
			CommitHash:   ref.CommitHash,
			IsDefault:    ref.Name == repo.DefaultBranch,
		})
	}
	if err := m.repos.ReplaceBranches(ctx, repo.ID, branches); err != nil {
		return fmt.Errorf("replace branches: %w", err)
	}
	return nil
}

func (m *LifecycleManager) loadRepo(ctx context.Context, repositoryID int64) (*model.Repository, error) {
	repo, err := m.repos.GetByID(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("load repository %d: %w", repositoryID, err)
	}
	if repo == nil {
		return nil, fmt.Errorf("repository %d: %w", repositoryID, driven.ErrRepoNotFound)
	}
	return repo, nil
}

func (m *LifecycleManager) loadMirror(ctx context.Context, repositoryID int64) (*model.Mirror, error) {
	mirror, err := m.repos.GetMirror(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("load mirror %d: %w", repositoryID, err)
	}
	if mirror == nil {
		return nil, fmt.Errorf("mirror %d: %w", repositoryID, driven.ErrRepoNotFound)
	}
	return mirror, nil
}

func (m *LifecycleManager) failTask(ctx context.Context, taskID int64, message string) {
	if taskID == 0 {
		return
	}
	if err := m.tracker.Fail(ctx, taskID, message); err != nil {
		m.logger.Error("failed to record sync task failure", "task", taskID, "error", err)
	}
}

// repoKey is the dispatcher serialization key for a repository.
func repoKey(repositoryID int64) string {
	return "repo:" + strconv.FormatInt(repositoryID, 10)
}

// moveDir relocates a directory, falling back to copy-and-remove when rename
// fails (cross-device moves).
func moveDir(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err == nil {
		return nil
	}
	if err := cp.Copy(oldPath, newPath); err != nil {
		return fmt.Errorf("copy directory: %w", err)
	}
	if err := os.RemoveAll(oldPath); err != nil {
		return fmt.Errorf("remove source directory: %w", err)
	}
	return nil
}
