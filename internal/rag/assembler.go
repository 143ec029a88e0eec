// Package rag turns a turn's file attachments into retrieval context.
//
// Every attachment is extracted in parallel and the prompt is only built
// once all of them succeeded. A single failed extraction fails the whole
// turn; the model never answers from partial context.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ainexus/ainexus/gateway/pkg/contracts"
	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("ainexus-gateway/rag")

// ParsedFile is the extracted text of one attachment.
type ParsedFile struct {
	Name    string
	Type    string
	Content string
}

// Assembler implements contracts.ContextAssembler.
type Assembler struct {
	extractor contracts.Extractor
}

// NewAssembler creates an assembler backed by ext.
func NewAssembler(ext contracts.Extractor) *Assembler {
	return &Assembler{extractor: ext}
}

// Assemble returns message unchanged when there are no attachments.
// Otherwise it returns the files' text, tagged and in attachment order,
// followed by the user's request.
func (a *Assembler) Assemble(ctx context.Context, attachments []models.AttachmentRef, message string) (string, error) {
	if len(attachments) == 0 {
		return message, nil
	}

	ctx, span := tracer.Start(ctx, "rag.assemble")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.files", len(attachments)))

	start := time.Now()
	parsed := make([]ParsedFile, len(attachments))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range attachments {
		g.Go(func() error {
			content, err := a.extractor.Extract(gctx, ref)
			if err != nil {
				return fmt.Errorf("extract %q: %w", ref.Name, err)
			}
			parsed[i] = ParsedFile{Name: ref.Name, Type: ref.Type, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return "", models.WrapTurnError(models.ErrAttachmentProcessingFailed, "Failed to process uploaded files", err)
	}

	log.Info().
		Int("files", len(parsed)).
		Dur("elapsed", time.Since(start)).
		Msg("RAG context created")

	return ContextPrompt(parsed, message), nil
}

// ContextPrompt renders extracted files and the user's request as one prompt.
func ContextPrompt(files []ParsedFile, message string) string {
	if strings.TrimSpace(message) == "" {
		message = models.DefaultFilePrompt
	}

	var b strings.Builder
	b.WriteString("The user has uploaded the following files. Use their content to answer the request that follows.\n\n")
	for i, f := range files {
		fmt.Fprintf(&b, "=== File %d: %s", i+1, f.Name)
		if f.Type != "" {
			fmt.Fprintf(&b, " (%s)", f.Type)
		}
		b.WriteString(" ===\n")
		b.WriteString(strings.TrimSpace(f.Content))
		fmt.Fprintf(&b, "\n=== End of %s ===\n\n", f.Name)
	}
	b.WriteString("User request: ")
	b.WriteString(message)
	return b.String()
}
