package driven

import (
	"context"
	"time"
)

// SectionData is one section entry in a rendered page. Entries with an empty
// Hash or Body are partial renderer output and are skipped by ingestion.
type SectionData struct {
	Hash      string
	Body      string
	Title     string
	AnchorID  string
	Source    string
	StartLine int
	EndLine   int
}

// PageContext is the per-page payload delivered by the renderer. Renderers
// disagree on the page identifier key: some populate CurrentPageName, some
// only PageName. Ingestion accepts either and skips pages carrying neither.
type PageContext struct {
	CurrentPageName string
	PageName        string
	Title           string
	Context         string // JSON blob of renderer-specific page context.
	Sections        []SectionData
}

// Identifier returns the page name, preferring CurrentPageName.
func (p PageContext) Identifier() string {
	if p.CurrentPageName != "" {
		return p.CurrentPageName
	}
	return p.PageName
}

// AssetContext is the payload for one emitted static asset.
type AssetContext struct {
	Path string
	Hash string
}

// FinalizeContext is the payload delivered once at the end of a render run.
type FinalizeContext struct {
	LastBuildAt   time.Time
	GlobalContext string
}

// RenderHooks receives renderer output during a run. The build ID passed to
// Render is threaded through every hook invocation as correlation context.
type RenderHooks interface {
	OnPageRendered(ctx context.Context, buildID int64, page PageContext) error
	OnAssetCreated(ctx context.Context, buildID int64, asset AssetContext) error
	OnFinalize(ctx context.Context, buildID int64, fin FinalizeContext) error
}

// RenderRequest configures one renderer run against a checked-out tree.
type RenderRequest struct {
	SourceDir  string
	ConfDir    string
	OutputDir  string
	DoctreeDir string
	Extensions []string
	BuildID    int64
}

// DocRenderer is the documentation rendering collaborator. It runs against a
// working tree and calls back into hooks as pages and assets are produced.
type DocRenderer interface {
	Render(ctx context.Context, req RenderRequest, hooks RenderHooks) error
}
