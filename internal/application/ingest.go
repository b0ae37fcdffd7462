package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// shortHashLen is the fallback version string length when no tag-derived
// version is available.
const shortHashLen = 12

// IngestEngine runs documentation builds: it checks out the document's source
// repository, invokes the renderer, and ingests the structured output into an
// idempotent page/section/content-block graph.
type IngestEngine struct {
	docs      driven.DocStore
	repos     driven.RepoStore
	worktrees *WorktreeManager
	git       driven.GitClient
	renderer  driven.DocRenderer
	logger    *slog.Logger
}

// NewIngestEngine creates an IngestEngine.
func NewIngestEngine(
	docs driven.DocStore,
	repos driven.RepoStore,
	worktrees *WorktreeManager,
	git driven.GitClient,
	renderer driven.DocRenderer,
	logger *slog.Logger,
) *IngestEngine {
	return &IngestEngine{
		docs:      docs,
		repos:     repos,
		worktrees: worktrees,
		git:       git,
		renderer:  renderer,
		logger:    logger,
	}
}

// RunBuild executes one documentation build and reports success. Errors never
// propagate past this boundary: every failure path logs and returns false,
// and the temporary checkout is removed regardless of which step failed.
// Re-running the same build against unchanged content converges to the same
// page/section/content-block rows.
func (e *IngestEngine) RunBuild(ctx context.Context, buildID int64) bool {
	err := e.runBuild(ctx, buildID)
	if err != nil {
		e.logger.Error("documentation build failed", "build", buildID, "error", err)
		return false
	}
	e.logger.Info("documentation build completed", "build", buildID)
	return true
}

func (e *IngestEngine) runBuild(ctx context.Context, buildID int64) error {
	build, err := e.docs.GetBuild(ctx, buildID)
	if err != nil {
		return fmt.Errorf("load build %d: %w", buildID, err)
	}
	if build == nil {
		return fmt.Errorf("build %d: %w", buildID, driven.ErrDocumentNotFound)
	}

	doc, err := e.docs.GetDocument(ctx, build.DocumentID)
	if err != nil {
		return fmt.Errorf("load document %d: %w", build.DocumentID, err)
	}
	if doc == nil {
		return fmt.Errorf("document %d: %w", build.DocumentID, driven.ErrDocumentNotFound)
	}
	if doc.RepositoryID == 0 {
		return fmt.Errorf("document %d: %w", doc.ID, driven.ErrMissingSourceRepository)
	}

	repo, err := e.repos.GetByID(ctx, doc.RepositoryID)
	if err != nil {
		return fmt.Errorf("load repository %d: %w", doc.RepositoryID, err)
	}
	if repo == nil {
		return fmt.Errorf("repository %d: %w", doc.RepositoryID, driven.ErrMissingSourceRepository)
	}

	checkout, err := e.worktrees.Acquire(ctx, repo, doc.Reference)
	if err != nil {
		return fmt.Errorf("acquire checkout: %w", err)
	}
	defer func() {
		if err := checkout.Release(ctx); err != nil {
			e.logger.Warn("checkout cleanup failed", "build", buildID, "error", err)
		}
	}()

	e.captureVersion(ctx, buildID, checkout.Path)

	confDir := filepath.Join(checkout.Path, doc.ConfPath)
	if _, err := os.Stat(confDir); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", driven.ErrConfigDirMissing, doc.ConfPath)
	}

	outputRoot, err := os.MkdirTemp("", "spienxhub-build-")
	if err != nil {
		return fmt.Errorf("create build output directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(outputRoot); err != nil {
			e.logger.Warn("build output cleanup failed", "path", outputRoot, "error", err)
		}
	}()

	hooks := &ingestHooks{docs: e.docs, documentID: doc.ID, logger: e.logger}
	req := driven.RenderRequest{
		SourceDir:  checkout.Path,
		ConfDir:    confDir,
		OutputDir:  filepath.Join(outputRoot, "output"),
		DoctreeDir: filepath.Join(outputRoot, "doctrees"),
		BuildID:    buildID,
	}
	if err := e.renderer.Render(ctx, req, hooks); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// captureVersion records the checkout's commit hash and a derived version on
// the build. Version derivation is best-effort: when no tag description is
// available the short commit hash is used, and a failure to resolve either
// never fails the build.
func (e *IngestEngine) captureVersion(ctx context.Context, buildID int64, checkoutPath string) {
	hash, err := e.git.HeadCommit(ctx, checkoutPath)
	if err != nil {
		e.logger.Warn("failed to resolve build commit", "build", buildID, "error", err)
		return
	}

	version, err := e.git.Describe(ctx, checkoutPath)
	if err != nil || version == "" {
		version = hash
		if len(version) > shortHashLen {
			version = version[:shortHashLen]
		}
		e.logger.Info("no version derivable from tags, using short commit hash",
			"build", buildID, "version", version)
	}

	if err := e.docs.SetBuildVersion(ctx, buildID, hash, version); err != nil {
		e.logger.Warn("failed to record build version", "build", buildID, "error", err)
	}
}

// ingestHooks receives renderer output and performs the idempotent upserts.
type ingestHooks struct {
	docs       driven.DocStore
	documentID int64
	logger     *slog.Logger
}

var _ driven.RenderHooks = (*ingestHooks)(nil)

// OnPageRendered upserts the page and its sections. Pages without an
// identifier and section entries missing a hash or body are partial renderer
// output and are skipped silently.
func (h *ingestHooks) OnPageRendered(ctx context.Context, buildID int64, page driven.PageContext) error {
	name := page.Identifier()
	if name == "" {
		h.logger.Debug("skipping page without identifier", "build", buildID)
		return nil
	}

	pageID, err := h.docs.UpsertPage(ctx, model.Page{
		DocumentID: h.documentID,
		Name:       name,
		Title:      page.Title,
		Context:    page.Context,
	})
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", name, err)
	}

	for _, section := range page.Sections {
		if section.Hash == "" || section.Body == "" {
			h.logger.Debug("skipping partial section", "build", buildID, "page", name)
			continue
		}

		if _, err := h.docs.GetOrCreateContentBlock(ctx, section.Hash, section.Body); err != nil {
			return fmt.Errorf("content block %s: %w", section.Hash, err)
		}
		err := h.docs.UpsertSection(ctx, model.Section{
			PageID:      pageID,
			ContentHash: section.Hash,
			Title:       section.Title,
			AnchorID:    section.AnchorID,
			SourcePath:  section.Source,
			StartLine:   section.StartLine,
			EndLine:     section.EndLine,
		})
		if err != nil {
			return fmt.Errorf("upsert section %s on page %s: %w", section.Hash, name, err)
		}
	}
	return nil
}

// OnAssetCreated upserts a static asset keyed by (document, path).
func (h *ingestHooks) OnAssetCreated(ctx context.Context, buildID int64, asset driven.AssetContext) error {
	err := h.docs.UpsertAsset(ctx, model.StaticAsset{
		DocumentID: h.documentID,
		Path:       asset.Path,
		Hash:       asset.Hash,
	})
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", asset.Path, err)
	}
	return nil
}

// OnFinalize stamps the document's last build time and global context.
func (h *ingestHooks) OnFinalize(ctx context.Context, buildID int64, fin driven.FinalizeContext) error {
	if err := h.docs.FinalizeDocument(ctx, h.documentID, fin.LastBuildAt, fin.GlobalContext); err != nil {
		return fmt.Errorf("finalize document %d: %w", h.documentID, err)
	}
	return nil
}
