package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/logger"
)

const (
	DefaultEnvironment = "Mr. Lift Functional Validation Panel"
	DefaultVersion     = "2.0"

	exportedAtLayout = "2006-01-02T15:04:05.000Z07:00"
	fileTimeLayout   = "2006-01-02T15-04-05"
)

var ErrEmptyConversation = errors.New("evaluation: nothing to export, the conversation is empty")

// Metadata describes where and when a document was produced.
type Metadata struct {
	ExportedAt  string `json:"exported_at"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	SessionID   string `json:"session_id,omitempty"`
}

// Document is the exported session.
type Document struct {
	Metadata     Metadata           `json:"metadata"`
	Context      domain.TestContext `json:"context"`
	Evaluation   domain.Evaluation  `json:"evaluation"`
	Conversation []domain.Message   `json:"conversation"`
	ThreadID     *string            `json:"thread_id"`
}

// Session is everything that goes into an export.
type Session struct {
	Context      domain.TestContext
	Evaluation   domain.Evaluation
	Conversation []domain.Message
	ThreadID     string
}

// Exporter stamps documents with export metadata.
type Exporter struct {
	Environment string
	Version     string
	Now         func() time.Time
	NewID       func() string
}

// NewExporter returns an exporter using the wall clock and random session ids.
// Empty environment or version fall back to the defaults.
func NewExporter(environment, version string) *Exporter {
	if environment == "" {
		environment = DefaultEnvironment
	}
	if version == "" {
		version = DefaultVersion
	}
	return &Exporter{
		Environment: environment,
		Version:     version,
		Now:         time.Now,
		NewID:       func() string { return uuid.NewString() },
	}
}

// Build assembles the document. An empty conversation is refused.
func (x *Exporter) Build(s Session) (Document, error) {
	if len(s.Conversation) == 0 {
		return Document{}, ErrEmptyConversation
	}
	doc := Document{
		Metadata: Metadata{
			ExportedAt:  x.Now().UTC().Format(exportedAtLayout),
			Environment: x.Environment,
			Version:     x.Version,
			SessionID:   x.NewID(),
		},
		Context:      s.Context,
		Evaluation:   s.Evaluation.Clone(),
		Conversation: append([]domain.Message(nil), s.Conversation...),
	}
	if s.ThreadID != "" {
		id := s.ThreadID
		doc.ThreadID = &id
	}
	return doc, nil
}

// Encode renders doc as indented JSON.
func Encode(doc Document) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("evaluation: encode: %w", err)
	}
	return raw, nil
}

// FileName is the download name for a document exported at t.
func FileName(t time.Time) string {
	return "mrlift-test-" + t.UTC().Format(fileTimeLayout) + ".json"
}

// WriteFile builds, encodes and writes the export into dir, returning the path.
func (x *Exporter) WriteFile(dir string, s Session) (string, error) {
	doc, err := x.Build(s)
	if err != nil {
		return "", err
	}
	raw, err := Encode(doc)
	if err != nil {
		return "", err
	}
	at, err := time.Parse(time.RFC3339, doc.Metadata.ExportedAt)
	if err != nil {
		at = x.Now()
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("evaluation: create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(at))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("evaluation: write export: %w", err)
	}
	logger.L.Info("session exported", "path", path, "messages", len(doc.Conversation), "session_id", doc.Metadata.SessionID)
	return path, nil
}

// Decode parses an exported document and checks its conversation.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("evaluation: decode: %w", err)
	}
	for i, m := range doc.Conversation {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			return Document{}, fmt.Errorf("evaluation: decode: message %d has unknown role %q", i, m.Role)
		}
	}
	if doc.Conversation == nil {
		doc.Conversation = []domain.Message{}
	}
	if doc.Evaluation.Checks == nil {
		doc.Evaluation.Checks = map[domain.CheckID]bool{}
	}
	if doc.Context.TestMode == "" {
		doc.Context.TestMode = domain.DefaultTestMode
	}
	return doc, nil
}

// ReadFile decodes the document at path.
func ReadFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("evaluation: read import: %w", err)
	}
	return Decode(bytes.NewReader(raw))
}

// Restorer replaces the live conversation.
type Restorer interface {
	Restore(ctx context.Context, msgs []domain.Message, threadID string) error
}

// Apply loads doc into the running session: the conversation and thread id
// first, then the tester context and evaluation when sheet is not nil.
func Apply(ctx context.Context, doc Document, conv Restorer, sheet *Sheet) error {
	threadID := ""
	if doc.ThreadID != nil {
		threadID = *doc.ThreadID
	}
	if err := conv.Restore(ctx, doc.Conversation, threadID); err != nil {
		return fmt.Errorf("evaluation: import conversation: %w", err)
	}
	if sheet == nil {
		return nil
	}
	if err := sheet.Replace(ctx, doc.Context, doc.Evaluation); err != nil {
		return fmt.Errorf("evaluation: import evaluation: %w", err)
	}
	return nil
}
