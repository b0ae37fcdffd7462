package model

import "time"

// Document is a durable pointer to documentation sources: a repository, a
// reference within it, and the path of the renderer configuration directory.
type Document struct {
	ID            int64
	Title         string
	RepositoryID  int64
	Reference     string // Branch, tag, or commit hash; empty means HEAD.
	ConfPath      string // Config directory (or conf file) relative to the working tree.
	LastBuildAt   *time.Time
	GlobalContext string // JSON blob written by the renderer's finalize hook.
}

// Build captures one build attempt of a Document: the resolved commit and a
// derived version string. Builds are immutable once completed, decoupling
// "what to build" from "one build's outcome".
type Build struct {
	ID         int64
	DocumentID int64
	CommitHash string
	Version    string
	CreatedAt  time.Time
}

// Page is the rendered output for one source page, unique per
// (document, name).
type Page struct {
	ID         int64
	DocumentID int64
	Name       string
	Title      string
	Context    string // JSON blob of renderer page context.
}

// Section is one content unit within a page, unique per (page, content
// hash). The rendered body lives in the referenced ContentBlock.
type Section struct {
	ID          int64
	PageID      int64
	ContentHash string
	Title       string
	AnchorID    string
	SourcePath  string
	StartLine   int
	EndLine     int
}

// ContentBlock is the content-addressed deduplication layer: rendered output
// keyed by its hash, stored exactly once no matter how many sections across
// how many pages produce it. The body is immutable after first write and
// blocks are never deleted by the ingestion engine.
type ContentBlock struct {
	ContentHash string
	Body        string
	CreatedAt   time.Time
}

// StaticAsset is a rendered asset file, unique per (document, path).
type StaticAsset struct {
	ID         int64
	DocumentID int64
	Path       string
	Hash       string
}
