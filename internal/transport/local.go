package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/dom"
	"github.com/raaihank/regex-relay/internal/engine"
	"github.com/raaihank/regex-relay/internal/logger"
	"github.com/raaihank/regex-relay/internal/rules"
)

// LocalTarget runs rule groups in-process against an HTML document. When
// it has a path, Attach reloads the document from disk and every run is
// written back.
type LocalTarget struct {
	mu     sync.Mutex
	path   string
	doc    *dom.Document
	engine *engine.Engine
	logger *logger.Logger
}

// NewLocalTarget loads the document at path
func NewLocalTarget(path string, log *logger.Logger) (*LocalTarget, error) {
	if log == nil {
		log = logger.Nop()
	}

	t := &LocalTarget{path: path, engine: engine.New(log), logger: log}
	if err := t.Attach(context.Background()); err != nil {
		return nil, err
	}
	return t, nil
}

// NewDocumentTarget wraps an already parsed document; nothing is written
// to disk
func NewDocumentTarget(doc *dom.Document, log *logger.Logger) *LocalTarget {
	if log == nil {
		log = logger.Nop()
	}
	return &LocalTarget{doc: doc, engine: engine.New(log), logger: log}
}

// Document returns the current document
func (t *LocalTarget) Document() *dom.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

func (t *LocalTarget) Send(ctx context.Context, groups []rules.RunGroup) (*engine.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.doc == nil {
		return nil, nil
	}

	result := t.engine.Run(groups, t.doc)

	if t.path != "" && result.Total > 0 {
		if err := t.doc.Save(t.path); err != nil {
			return nil, fmt.Errorf("failed to write page: %w", err)
		}
		t.logger.Debug("Page written", zap.String("path", t.path), zap.Int("total", result.Total))
	}
	return result, nil
}

func (t *LocalTarget) Attach(ctx context.Context) error {
	if t.path == "" {
		return nil
	}

	doc, err := dom.Load(t.path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.doc = doc
	t.mu.Unlock()
	return nil
}

// ActiveTarget lets a LocalTarget act as its own resolver
func (t *LocalTarget) ActiveTarget(context.Context) (Target, error) {
	return t, nil
}
