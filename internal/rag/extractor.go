package rag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// HTTPExtractor fetches attachment bytes from the file store and converts
// them to text. The store serves raw file content at <baseURL>/<id>.
type HTTPExtractor struct {
	baseURL  string
	maxBytes int64
	client   *http.Client
	markdown goldmark.Markdown
}

// NewHTTPExtractor creates an extractor reading at most maxBytes per file.
func NewHTTPExtractor(baseURL string, maxBytes int64) *HTTPExtractor {
	if maxBytes <= 0 {
		maxBytes = models.MaxFileSize
	}
	return &HTTPExtractor{
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 30 * time.Second},
		markdown: goldmark.New(),
	}
}

// Extract implements contracts.Extractor.
func (e *HTTPExtractor) Extract(ctx context.Context, ref models.AttachmentRef) (string, error) {
	if ref.ID == "" {
		return "", fmt.Errorf("attachment %q has no id", ref.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/"+url.PathEscape(ref.ID), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("file store: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	mediaType := ref.Type
	if mediaType == "" {
		mediaType = resp.Header.Get("Content-Type")
	}
	return e.toText(ref, mediaType, data)
}

func (e *HTTPExtractor) toText(ref models.AttachmentRef, mediaType string, data []byte) (string, error) {
	kind := classify(ref.Name, mediaType)
	switch kind {
	case kindMarkdown:
		return flattenMarkdown(e.markdown, data), nil
	case kindText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s is not valid UTF-8 text", ref.Name)
		}
		return string(data), nil
	default:
		return fmt.Sprintf("[%s: %s file of %d bytes; its content cannot be extracted as text]",
			ref.Name, mediaType, ref.Size), nil
	}
}

type fileKind int

const (
	kindBinary fileKind = iota
	kindText
	kindMarkdown
)

var textSubtypes = map[string]bool{
	"json":       true,
	"xml":        true,
	"csv":        true,
	"yaml":       true,
	"x-yaml":     true,
	"javascript": true,
	"x-sh":       true,
	"sql":        true,
}

var textExtensions = map[string]bool{
	".txt": true, ".csv": true, ".json": true, ".yaml": true, ".yml": true,
	".xml": true, ".html": true, ".go": true, ".js": true, ".ts": true,
	".tsx": true, ".py": true, ".css": true, ".sql": true, ".log": true,
}

func classify(name, mediaType string) fileKind {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".md" || ext == ".markdown" {
		return kindMarkdown
	}

	mt, _, err := mime.ParseMediaType(mediaType)
	if err == nil {
		if mt == "text/markdown" || mt == "text/x-markdown" {
			return kindMarkdown
		}
		if strings.HasPrefix(mt, "text/") {
			return kindText
		}
		if _, sub, ok := strings.Cut(mt, "/"); ok && textSubtypes[sub] {
			return kindText
		}
	}

	if textExtensions[ext] {
		return kindText
	}
	return kindBinary
}

// flattenMarkdown keeps the prose and code of a markdown document and drops
// the markup.
func flattenMarkdown(md goldmark.Markdown, src []byte) string {
	doc := md.Parser().Parse(text.NewReader(src))

	var b bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
