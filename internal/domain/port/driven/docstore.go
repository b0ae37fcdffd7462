package driven

import (
	"context"
	"errors"
	"time"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

// ErrDocumentNotFound indicates the requested document or build is missing.
var ErrDocumentNotFound = errors.New("document not found")

// DocStore defines the driven port for the documentation graph: documents,
// builds, pages, sections, content blocks, and static assets. Upserts are
// keyed by the natural keys from the data model so repeated ingestion of the
// same content converges instead of accumulating duplicates.
type DocStore interface {
	AddDocument(ctx context.Context, doc model.Document) (int64, error)
	GetDocument(ctx context.Context, id int64) (*model.Document, error)

	// FinalizeDocument records a completed build's timestamp and global
	// context blob on the document.
	FinalizeDocument(ctx context.Context, id int64, lastBuildAt time.Time, globalContext string) error

	AddBuild(ctx context.Context, build model.Build) (int64, error)
	GetBuild(ctx context.Context, id int64) (*model.Build, error)

	// SetBuildVersion records the resolved commit hash and derived version.
	SetBuildVersion(ctx context.Context, id int64, commitHash, version string) error

	// UpsertPage inserts or updates a page keyed by (document, name),
	// overwriting title and context, and returns the page ID.
	UpsertPage(ctx context.Context, page model.Page) (int64, error)
	GetPage(ctx context.Context, documentID int64, name string) (*model.Page, error)
	ListPages(ctx context.Context, documentID int64) ([]model.Page, error)

	// GetOrCreateContentBlock creates the block if the hash is new; an
	// existing block's body is left untouched.
	GetOrCreateContentBlock(ctx context.Context, contentHash, body string) (*model.ContentBlock, error)
	GetContentBlock(ctx context.Context, contentHash string) (*model.ContentBlock, error)
	CountContentBlocks(ctx context.Context, contentHash string) (int, error)

	// UpsertSection inserts or updates a section keyed by (page, content
	// hash), overwriting title, anchor, source path, and line range.
	UpsertSection(ctx context.Context, section model.Section) error
	ListSections(ctx context.Context, pageID int64) ([]model.Section, error)

	// UpsertAsset inserts or updates an asset keyed by (document, path),
	// overwriting the hash.
	UpsertAsset(ctx context.Context, asset model.StaticAsset) error
	ListAssets(ctx context.Context, documentID int64) ([]model.StaticAsset, error)
}
