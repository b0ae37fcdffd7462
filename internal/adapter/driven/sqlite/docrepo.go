package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DocStore = (*DocRepo)(nil)

// DocRepo is the SQLite implementation of the DocStore port interface. All
// upserts use the natural keys from the schema so ingestion converges on
// re-runs instead of accumulating rows.
type DocRepo struct {
	db *DB
}

// NewDocRepo creates a new DocRepo backed by the given DB.
func NewDocRepo(db *DB) *DocRepo {
	return &DocRepo{db: db}
}

// AddDocument inserts a new document and returns its ID.
func (r *DocRepo) AddDocument(ctx context.Context, doc model.Document) (int64, error) {
	const query = `
		INSERT INTO documents (title, repository_id, reference, conf_path, last_build_at, global_context)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	globalContext := doc.GlobalContext
	if globalContext == "" {
		globalContext = "{}"
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		doc.Title, doc.RepositoryID, doc.Reference, doc.ConfPath, nullTime(doc.LastBuildAt), globalContext)
	if err != nil {
		return 0, fmt.Errorf("add document %s: %w", doc.Title, err)
	}
	return res.LastInsertId()
}

// GetDocument retrieves a document by ID. Returns nil, nil if it does not
// exist.
func (r *DocRepo) GetDocument(ctx context.Context, id int64) (*model.Document, error) {
	const query = `
		SELECT id, title, repository_id, reference, conf_path, last_build_at, global_context
		FROM documents WHERE id = ?
	`

	var doc model.Document
	var lastBuildAt sql.NullString
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Title, &doc.RepositoryID, &doc.Reference, &doc.ConfPath, &lastBuildAt, &doc.GlobalContext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}

	doc.LastBuildAt, err = parseNullTime(lastBuildAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_build_at: %w", err)
	}
	return &doc, nil
}

// FinalizeDocument records a completed build on the document.
func (r *DocRepo) FinalizeDocument(ctx context.Context, id int64, lastBuildAt time.Time, globalContext string) error {
	const query = `UPDATE documents SET last_build_at = ?, global_context = ? WHERE id = ?`

	if globalContext == "" {
		globalContext = "{}"
	}

	res, err := r.db.Writer.ExecContext(ctx, query, lastBuildAt.UTC(), globalContext, id)
	if err != nil {
		return fmt.Errorf("finalize document %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("finalize document %d: %w", id, driven.ErrDocumentNotFound)
	}
	return nil
}

// AddBuild inserts a new build record and returns its ID.
func (r *DocRepo) AddBuild(ctx context.Context, build model.Build) (int64, error) {
	const query = `INSERT INTO builds (document_id, commit_hash, version, created_at) VALUES (?, ?, ?, ?)`

	createdAt := build.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.Writer.ExecContext(ctx, query, build.DocumentID, build.CommitHash, build.Version, createdAt)
	if err != nil {
		return 0, fmt.Errorf("add build doc=%d: %w", build.DocumentID, err)
	}
	return res.LastInsertId()
}

// GetBuild retrieves a build by ID. Returns nil, nil if it does not exist.
func (r *DocRepo) GetBuild(ctx context.Context, id int64) (*model.Build, error) {
	const query = `SELECT id, document_id, commit_hash, version, created_at FROM builds WHERE id = ?`

	var build model.Build
	var createdAt string
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(
		&build.ID, &build.DocumentID, &build.CommitHash, &build.Version, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get build %d: %w", id, err)
	}

	build.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &build, nil
}

// SetBuildVersion records the resolved commit hash and derived version on a
// build.
func (r *DocRepo) SetBuildVersion(ctx context.Context, id int64, commitHash, version string) error {
	const query = `UPDATE builds SET commit_hash = ?, version = ? WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, commitHash, version, id)
	if err != nil {
		return fmt.Errorf("set build version %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set build version %d: %w", id, driven.ErrDocumentNotFound)
	}
	return nil
}

// UpsertPage inserts or updates a page keyed by (document, name) and returns
// the page ID. Title and context are overwritten on every re-render.
func (r *DocRepo) UpsertPage(ctx context.Context, page model.Page) (int64, error) {
	const query = `
		INSERT INTO pages (document_id, name, title, context) VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id, name) DO UPDATE SET
			title = excluded.title,
			context = excluded.context
	`

	pageContext := page.Context
	if pageContext == "" {
		pageContext = "{}"
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, page.DocumentID, page.Name, page.Title, pageContext); err != nil {
		return 0, fmt.Errorf("upsert page %s: %w", page.Name, err)
	}

	// LastInsertId is unreliable for ON CONFLICT updates; read the row back.
	var id int64
	err := r.db.Writer.QueryRowContext(ctx,
		`SELECT id FROM pages WHERE document_id = ? AND name = ?`, page.DocumentID, page.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolve page id %s: %w", page.Name, err)
	}
	return id, nil
}

// GetPage retrieves a page by document and name. Returns nil, nil if it does
// not exist.
func (r *DocRepo) GetPage(ctx context.Context, documentID int64, name string) (*model.Page, error) {
	const query = `SELECT id, document_id, name, title, context FROM pages WHERE document_id = ? AND name = ?`

	var page model.Page
	err := r.db.Reader.QueryRowContext(ctx, query, documentID, name).Scan(
		&page.ID, &page.DocumentID, &page.Name, &page.Title, &page.Context)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get page %d/%s: %w", documentID, name, err)
	}
	return &page, nil
}

// ListPages returns all pages of a document ordered by name.
func (r *DocRepo) ListPages(ctx context.Context, documentID int64) ([]model.Page, error) {
	const query = `SELECT id, document_id, name, title, context FROM pages WHERE document_id = ? ORDER BY name`

	rows, err := r.db.Reader.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		var page model.Page
		if err := rows.Scan(&page.ID, &page.DocumentID, &page.Name, &page.Title, &page.Context); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, page)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}

	return pages, nil
}

// GetOrCreateContentBlock creates the block when the hash is new. An existing
// block is returned as-is: the body is immutable after first write, so two
// source locations hashing to the same content share one row.
func (r *DocRepo) GetOrCreateContentBlock(ctx context.Context, contentHash, body string) (*model.ContentBlock, error) {
	const insert = `
		INSERT INTO content_blocks (content_hash, body, created_at) VALUES (?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`

	if _, err := r.db.Writer.ExecContext(ctx, insert, contentHash, body, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create content block %s: %w", contentHash, err)
	}

	block, err := r.getContentBlock(ctx, r.db.Writer, contentHash)
	if err != nil {
		return nil, err
	}
	return block, nil
}

// GetContentBlock retrieves a content block by hash. Returns nil, nil if it
// does not exist.
func (r *DocRepo) GetContentBlock(ctx context.Context, contentHash string) (*model.ContentBlock, error) {
	return r.getContentBlock(ctx, r.db.Reader, contentHash)
}

func (r *DocRepo) getContentBlock(ctx context.Context, conn *sql.DB, contentHash string) (*model.ContentBlock, error) {
	const query = `SELECT content_hash, body, created_at FROM content_blocks WHERE content_hash = ?`

	var block model.ContentBlock
	var createdAt string
	err := conn.QueryRowContext(ctx, query, contentHash).Scan(&block.ContentHash, &block.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content block %s: %w", contentHash, err)
	}

	block.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &block, nil
}

// CountContentBlocks counts blocks with the given hash; at most one can
// exist, so the result is 0 or 1.
func (r *DocRepo) CountContentBlocks(ctx context.Context, contentHash string) (int, error) {
	const query = `SELECT COUNT(*) FROM content_blocks WHERE content_hash = ?`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, contentHash).Scan(&count); err != nil {
		return 0, fmt.Errorf("count content blocks %s: %w", contentHash, err)
	}
	return count, nil
}

// UpsertSection inserts or updates a section keyed by (page, content hash).
// Title, anchor, source path, and line range are overwritten on re-render.
func (r *DocRepo) UpsertSection(ctx context.Context, section model.Section) error {
	const query = `
		INSERT INTO sections (page_id, content_hash, title, anchor_id, source_path, start_line, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(page_id, content_hash) DO UPDATE SET
			title = excluded.title,
			anchor_id = excluded.anchor_id,
			source_path = excluded.source_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		section.PageID, section.ContentHash, section.Title, section.AnchorID,
		section.SourcePath, section.StartLine, section.EndLine)
	if err != nil {
		return fmt.Errorf("upsert section page=%d hash=%s: %w", section.PageID, section.ContentHash, err)
	}
	return nil
}

// ListSections returns all sections of a page ordered by content hash.
func (r *DocRepo) ListSections(ctx context.Context, pageID int64) ([]model.Section, error) {
	const query = `
		SELECT id, page_id, content_hash, title, anchor_id, source_path, start_line, end_line
		FROM sections WHERE page_id = ? ORDER BY content_hash
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.PageID, &s.ContentHash, &s.Title, &s.AnchorID, &s.SourcePath, &s.StartLine, &s.EndLine); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}

	return sections, nil
}

// UpsertAsset inserts or updates an asset keyed by (document, path),
// overwriting the hash.
func (r *DocRepo) UpsertAsset(ctx context.Context, asset model.StaticAsset) error {
	const query = `
		INSERT INTO static_assets (document_id, path, hash) VALUES (?, ?, ?)
		ON CONFLICT(document_id, path) DO UPDATE SET hash = excluded.hash
	`

	_, err := r.db.Writer.ExecContext(ctx, query, asset.DocumentID, asset.Path, asset.Hash)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", asset.Path, err)
	}
	return nil
}

// ListAssets returns all static assets of a document ordered by path.
func (r *DocRepo) ListAssets(ctx context.Context, documentID int64) ([]model.StaticAsset, error) {
	const query = `SELECT id, document_id, path, hash FROM static_assets WHERE document_id = ? ORDER BY path`

	rows, err := r.db.Reader.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []model.StaticAsset
	for rows.Next() {
		var a model.StaticAsset
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.Path, &a.Hash); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}

	return assets, nil
}
