// Package markdown implements the DocRenderer port for Markdown source trees
// using goldmark, with bluemonday sanitisation of the rendered HTML.
package markdown

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DocRenderer = (*Renderer)(nil)

// Renderer renders Markdown trees page by page. Each page is split into
// sections at top-level headings; section bodies are sanitised HTML keyed by
// their content hash.
type Renderer struct {
	policy *bluemonday.Policy
	logger *slog.Logger
}

// New creates a Renderer with a UGC sanitisation policy extended to keep
// heading anchors.
func New(logger *slog.Logger) *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	return &Renderer{policy: policy, logger: logger}
}

// Render walks req.SourceDir, renders every Markdown file into a page, emits
// non-Markdown files as static assets, and finalizes with a global context
// describing the run.
func (r *Renderer) Render(ctx context.Context, req driven.RenderRequest, hooks driven.RenderHooks) error {
	md := newEngine(req.Extensions)

	var pages, assets int
	err := filepath.WalkDir(req.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(req.SourceDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if strings.EqualFold(filepath.Ext(path), ".md") {
			page, err := r.renderPage(md, path, rel)
			if err != nil {
				return fmt.Errorf("render %s: %w", rel, err)
			}
			if err := hooks.OnPageRendered(ctx, req.BuildID, page); err != nil {
				return err
			}
			pages++
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("hash asset %s: %w", rel, err)
		}
		if err := hooks.OnAssetCreated(ctx, req.BuildID, driven.AssetContext{Path: rel, Hash: hash}); err != nil {
			return err
		}
		assets++
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("render complete", "pages", pages, "assets", assets)

	global, err := json.Marshal(map[string]any{
		"renderer": "markdown",
		"pages":    pages,
		"assets":   assets,
	})
	if err != nil {
		return fmt.Errorf("marshal global context: %w", err)
	}
	return hooks.OnFinalize(ctx, req.BuildID, driven.FinalizeContext{
		LastBuildAt:   time.Now().UTC(),
		GlobalContext: string(global),
	})
}

// newEngine builds a goldmark instance for the requested extension names.
// Unknown names are ignored; GFM is always on.
func newEngine(names []string) goldmark.Markdown {
	exts := []goldmark.Extender{extension.GFM}
	for _, name := range names {
		switch name {
		case "footnote":
			exts = append(exts, extension.Footnote)
		case "typographer":
			exts = append(exts, extension.Typographer)
		case "definition-list":
			exts = append(exts, extension.DefinitionList)
		}
	}
	return goldmark.New(goldmark.WithExtensions(exts...))
}

// renderPage renders one Markdown file into a PageContext. The file is split
// into chunks at top-level "#"-style headings; each chunk becomes a section
// whose hash is the SHA-256 of its sanitised HTML.
func (r *Renderer) renderPage(md goldmark.Markdown, path, rel string) (driven.PageContext, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return driven.PageContext{}, err
	}

	name := strings.TrimSuffix(rel, filepath.Ext(rel))
	chunks := splitSections(string(source))

	page := driven.PageContext{
		CurrentPageName: name,
		Title:           name,
	}

	for _, chunk := range chunks {
		var buf bytes.Buffer
		if err := md.Convert([]byte(chunk.text), &buf); err != nil {
			return driven.PageContext{}, err
		}
		body := r.policy.Sanitize(buf.String())
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}

		sum := sha256.Sum256([]byte(body))
		section := driven.SectionData{
			Hash:      hex.EncodeToString(sum[:]),
			Body:      body,
			Title:     chunk.title,
			AnchorID:  slugify(chunk.title),
			Source:    rel,
			StartLine: chunk.startLine,
			EndLine:   chunk.endLine,
		}
		page.Sections = append(page.Sections, section)

		// The first heading names the page.
		if page.Title == name && chunk.title != "" {
			page.Title = chunk.title
		}
	}

	pageCtx, err := json.Marshal(map[string]any{
		"source":   rel,
		"sections": len(page.Sections),
	})
	if err != nil {
		return driven.PageContext{}, err
	}
	page.Context = string(pageCtx)

	return page, nil
}

type chunk struct {
	title     string
	text      string
	startLine int
	endLine   int
}

// splitSections divides Markdown source at ATX headings of level 1 or 2.
// Content before the first heading forms an untitled leading section. Line
// numbers are 1-based and inclusive.
func splitSections(source string) []chunk {
	lines := strings.Split(source, "\n")

	var chunks []chunk
	current := chunk{startLine: 1}
	var buf []string
	inFence := false

	flush := func(endLine int) {
		text := strings.Join(buf, "\n")
		if strings.TrimSpace(text) != "" {
			current.text = text
			current.endLine = endLine
			chunks = append(chunks, current)
		}
		buf = nil
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}

		if !inFence && isSectionHeading(trimmed) {
			flush(i)
			current = chunk{
				title:     strings.TrimSpace(strings.TrimLeft(trimmed, "#")),
				startLine: i + 1,
			}
		}
		buf = append(buf, line)
	}
	flush(len(lines))

	return chunks
}

func isSectionHeading(line string) bool {
	return strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "## ")
}

// slugify produces an anchor identifier from a heading title.
func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
