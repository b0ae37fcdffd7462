package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

const repoColumns = `id, organisation_id, name, description, kind, status, local_path, is_bare, is_public,
	owner_id, default_branch, last_commit_hash, total_commits, error_message, created_at, updated_at`

// Add inserts a new repository and returns its ID. Returns
// ErrRepoAlreadyExists if the (organisation, name) pair or the local path is
// already taken.
func (r *RepoRepo) Add(ctx context.Context, repo model.Repository) (int64, error) {
	const query = `
		INSERT INTO repositories (
			organisation_id, name, description, kind, status, local_path, is_bare, is_public,
			owner_id, default_branch, last_commit_hash, total_commits, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	createdAt := repo.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var ownerID any
	if repo.OwnerID != nil {
		ownerID = *repo.OwnerID
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		repo.OrganisationID, repo.Name, repo.Description, string(repo.Kind), string(repo.Status),
		repo.LocalPath, boolToInt(repo.IsBare), boolToInt(repo.IsPublic), ownerID,
		repo.DefaultBranch, repo.LastCommitHash, repo.TotalCommits, repo.ErrorMessage,
		createdAt, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return 0, fmt.Errorf("add repository %s: %w", repo.Name, driven.ErrRepoAlreadyExists)
		}
		return 0, fmt.Errorf("add repository %s: %w", repo.Name, err)
	}

	return res.LastInsertId()
}

// GetByID retrieves a repository by ID. Returns nil, nil if it does not exist.
func (r *RepoRepo) GetByID(ctx context.Context, id int64) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE id = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %d: %w", id, err)
	}
	return repo, nil
}

// GetByName retrieves a repository by organisation and name. Returns nil, nil
// if it does not exist.
func (r *RepoRepo) GetByName(ctx context.Context, organisationID int64, name string) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE organisation_id = ? AND name = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, organisationID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %d/%s: %w", organisationID, name, err)
	}
	return repo, nil
}

// ListByOrganisation returns all repositories in the organisation ordered by
// name.
func (r *RepoRepo) ListByOrganisation(ctx context.Context, organisationID int64) ([]model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE organisation_id = ? ORDER BY name`

	rows, err := r.db.Reader.QueryContext(ctx, query, organisationID)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// Update persists the mutable fields of a repository. Returns ErrRepoNotFound
// if the repository does not exist.
func (r *RepoRepo) Update(ctx context.Context, repo model.Repository) error {
	const query = `
		UPDATE repositories SET
			organisation_id = ?, name = ?, description = ?, kind = ?, status = ?, local_path = ?,
			is_bare = ?, is_public = ?, owner_id = ?, default_branch = ?, last_commit_hash = ?,
			total_commits = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`

	var ownerID any
	if repo.OwnerID != nil {
		ownerID = *repo.OwnerID
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		repo.OrganisationID, repo.Name, repo.Description, string(repo.Kind), string(repo.Status),
		repo.LocalPath, boolToInt(repo.IsBare), boolToInt(repo.IsPublic), ownerID,
		repo.DefaultBranch, repo.LastCommitHash, repo.TotalCommits, repo.ErrorMessage,
		time.Now().UTC(), repo.ID,
	)
	if err != nil {
		return fmt.Errorf("update repository %d: %w", repo.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update repository %d: %w", repo.ID, driven.ErrRepoNotFound)
	}

	return nil
}

// Delete removes a repository by ID. Branches, sync tasks, access policies,
// mirror settings, and documents are removed via foreign key cascade.
func (r *RepoRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM repositories WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete repository %d: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete repository %d: %w", id, driven.ErrRepoNotFound)
	}

	return nil
}

// SetMirrorSettings inserts or replaces the mirror side record for a
// repository.
func (r *RepoRepo) SetMirrorSettings(ctx context.Context, settings model.MirrorSettings) error {
	const query = `
		INSERT INTO mirror_settings (
			repository_id, source_url, source_type, auto_sync, sync_interval_seconds,
			last_synced_at, consecutive_failures
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository_id) DO UPDATE SET
			source_url = excluded.source_url,
			source_type = excluded.source_type,
			auto_sync = excluded.auto_sync,
			sync_interval_seconds = excluded.sync_interval_seconds,
			last_synced_at = excluded.last_synced_at,
			consecutive_failures = excluded.consecutive_failures
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		settings.RepositoryID, settings.SourceURL, string(settings.SourceType),
		boolToInt(settings.AutoSync), settings.SyncIntervalSeconds,
		nullTime(settings.LastSyncedAt), settings.ConsecutiveFailures,
	)
	if err != nil {
		return fmt.Errorf("set mirror settings %d: %w", settings.RepositoryID, err)
	}

	return nil
}

// GetMirror retrieves a repository together with its mirror settings.
// Returns nil, nil if the repository does not exist or is not a mirror.
func (r *RepoRepo) GetMirror(ctx context.Context, repositoryID int64) (*model.Mirror, error) {
	repo, err := r.GetByID(ctx, repositoryID)
	if err != nil || repo == nil {
		return nil, err
	}

	const query = `
		SELECT repository_id, source_url, source_type, auto_sync, sync_interval_seconds,
		       last_synced_at, consecutive_failures
		FROM mirror_settings WHERE repository_id = ?
	`

	settings, err := scanMirrorSettings(r.db.Reader.QueryRowContext(ctx, query, repositoryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mirror settings %d: %w", repositoryID, err)
	}

	return &model.Mirror{Repository: *repo, Settings: *settings}, nil
}

// ListAutoSyncMirrors returns all mirrors with auto-sync enabled whose
// repository is not archived, ordered by repository ID.
func (r *RepoRepo) ListAutoSyncMirrors(ctx context.Context) ([]model.Mirror, error) {
	query := `
		SELECT ` + prefixColumns("r", repoColumns) + `,
		       m.repository_id, m.source_url, m.source_type, m.auto_sync, m.sync_interval_seconds,
		       m.last_synced_at, m.consecutive_failures
		FROM repositories r
		JOIN mirror_settings m ON m.repository_id = r.id
		WHERE m.auto_sync = 1 AND r.status != 'archived'
		ORDER BY r.id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list auto-sync mirrors: %w", err)
	}
	defer rows.Close()

	var mirrors []model.Mirror
	for rows.Next() {
		mirror, err := scanMirror(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mirror: %w", err)
		}
		mirrors = append(mirrors, *mirror)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mirrors: %w", err)
	}

	return mirrors, nil
}

// ReplaceBranches replaces the branch snapshot for a repository in a single
// transaction.
func (r *RepoRepo) ReplaceBranches(ctx context.Context, repositoryID int64, branches []model.Branch) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin branch replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM branches WHERE repository_id = ?`, repositoryID); err != nil {
		return fmt.Errorf("clear branches: %w", err)
	}

	const insert = `INSERT INTO branches (repository_id, name, commit_hash, is_default, updated_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	for _, b := range branches {
		if _, err := tx.ExecContext(ctx, insert, repositoryID, b.Name, b.CommitHash, boolToInt(b.IsDefault), now); err != nil {
			return fmt.Errorf("insert branch %s: %w", b.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit branch replace: %w", err)
	}

	return nil
}

// ListBranches returns the branch snapshot for a repository ordered by name.
func (r *RepoRepo) ListBranches(ctx context.Context, repositoryID int64) ([]model.Branch, error) {
	const query = `
		SELECT id, repository_id, name, commit_hash, is_default, updated_at
		FROM branches WHERE repository_id = ? ORDER BY name
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var branches []model.Branch
	for rows.Next() {
		var b model.Branch
		var updatedAt string
		if err := rows.Scan(&b.ID, &b.RepositoryID, &b.Name, &b.CommitHash, &b.IsDefault, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		b.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		branches = append(branches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}

	return branches, nil
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var kind, status, createdAt, updatedAt string
	var ownerID sql.NullInt64

	err := s.Scan(
		&repo.ID, &repo.OrganisationID, &repo.Name, &repo.Description, &kind, &status,
		&repo.LocalPath, &repo.IsBare, &repo.IsPublic, &ownerID,
		&repo.DefaultBranch, &repo.LastCommitHash, &repo.TotalCommits, &repo.ErrorMessage,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	repo.Kind = model.RepoKind(kind)
	repo.Status = model.RepoStatus(status)
	if ownerID.Valid {
		repo.OwnerID = &ownerID.Int64
	}

	repo.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	repo.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &repo, nil
}

func scanMirrorSettings(s scanner) (*model.MirrorSettings, error) {
	var m model.MirrorSettings
	var sourceType string
	var lastSynced sql.NullString

	err := s.Scan(&m.RepositoryID, &m.SourceURL, &sourceType, &m.AutoSync,
		&m.SyncIntervalSeconds, &lastSynced, &m.ConsecutiveFailures)
	if err != nil {
		return nil, err
	}

	m.SourceType = model.SourceType(sourceType)
	m.LastSyncedAt, err = parseNullTime(lastSynced)
	if err != nil {
		return nil, fmt.Errorf("parse last_synced_at: %w", err)
	}

	return &m, nil
}

func scanMirror(s scanner) (*model.Mirror, error) {
	var mirror model.Mirror
	var kind, status, createdAt, updatedAt, sourceType string
	var ownerID sql.NullInt64
	var lastSynced sql.NullString

	err := s.Scan(
		&mirror.ID, &mirror.OrganisationID, &mirror.Name, &mirror.Description, &kind, &status,
		&mirror.LocalPath, &mirror.IsBare, &mirror.IsPublic, &ownerID,
		&mirror.DefaultBranch, &mirror.LastCommitHash, &mirror.TotalCommits, &mirror.ErrorMessage,
		&createdAt, &updatedAt,
		&mirror.Settings.RepositoryID, &mirror.Settings.SourceURL, &sourceType,
		&mirror.Settings.AutoSync, &mirror.Settings.SyncIntervalSeconds,
		&lastSynced, &mirror.Settings.ConsecutiveFailures,
	)
	if err != nil {
		return nil, err
	}

	mirror.Kind = model.RepoKind(kind)
	mirror.Status = model.RepoStatus(status)
	mirror.Settings.SourceType = model.SourceType(sourceType)
	if ownerID.Valid {
		mirror.OwnerID = &ownerID.Int64
	}

	mirror.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	mirror.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	mirror.Settings.LastSyncedAt, err = parseNullTime(lastSynced)
	if err != nil {
		return nil, fmt.Errorf("parse last_synced_at: %w", err)
	}

	return &mirror, nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
