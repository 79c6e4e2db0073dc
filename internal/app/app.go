// Package app wires the console components into one running session.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/mrlift-console/internal/assistant"
	"github.com/comigor/mrlift-console/internal/classifier"
	"github.com/comigor/mrlift-console/internal/config"
	"github.com/comigor/mrlift-console/internal/engine"
	"github.com/comigor/mrlift-console/internal/evaluation"
	"github.com/comigor/mrlift-console/internal/logger"
	"github.com/comigor/mrlift-console/internal/scenario"
	"github.com/comigor/mrlift-console/internal/store"
)

// App is the main application that wires together all components.
type App struct {
	cfg *config.Config

	session    *store.Session
	Engine     *engine.Engine
	Runner     *scenario.Runner
	Sheet      *evaluation.Sheet
	Catalog    *scenario.Catalog
	Exporter   *evaluation.Exporter
	Classifier *classifier.Classifier
}

// New opens the configured session store and assistant transport.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	kv, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	client, err := assistant.New(*cfg)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("create assistant client: %w", err)
	}
	return NewWithClient(ctx, cfg, kv, client), nil
}

// NewWithClient builds an App over an already opened store and transport.
func NewWithClient(ctx context.Context, cfg *config.Config, kv store.KV, client assistant.Client) *App {
	sess := store.NewSession(kv)
	eng := engine.New(ctx, client, sess, engine.WithAssistantID(cfg.Assistant.AssistantID))

	var runnerOpts []scenario.Option
	if cfg.Scenario.Delay > 0 {
		runnerOpts = append(runnerOpts, scenario.WithDelay(cfg.Scenario.Delay))
	}

	a := &App{
		cfg:        cfg,
		session:    sess,
		Engine:     eng,
		Runner:     scenario.NewRunner(ctx, eng, runnerOpts...),
		Sheet:      evaluation.NewSheet(ctx, sess),
		Catalog:    scenario.NewCatalog(cfg.Scenarios),
		Exporter:   evaluation.NewExporter(cfg.Export.Environment, cfg.Export.Version),
		Classifier: classifier.Default(),
	}
	logger.L.Info("session ready",
		"assistant_mode", cfg.Assistant.Mode,
		"store", cfg.Store.Driver,
		"scenarios", len(a.Catalog.List()),
	)
	return a
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// RunScenario starts the named scenario and waits for it to finish or abort.
func (a *App) RunScenario(ctx context.Context, name string) error {
	sc, err := a.Catalog.Get(name)
	if err != nil {
		return err
	}
	if err := a.Runner.Start(ctx, sc.Prompts); err != nil {
		return err
	}
	if err := a.Runner.Wait(ctx); err != nil {
		return err
	}
	if msg := a.Engine.Snapshot().Err; msg != "" {
		return fmt.Errorf("scenario %q aborted: %s", name, msg)
	}
	return nil
}

// ExportSession writes the current session to dir, or the configured export
// dir when dir is empty.
func (a *App) ExportSession(dir string) (string, error) {
	if dir == "" {
		dir = a.cfg.Export.Dir
	}
	st := a.Engine.Snapshot()
	return a.Exporter.WriteFile(dir, evaluation.Session{
		Context:      a.Sheet.Context(),
		Evaluation:   a.Sheet.Evaluation(),
		Conversation: st.Messages,
		ThreadID:     st.ThreadID,
	})
}

// Import loads an exported document into the session.
func (a *App) Import(ctx context.Context, path string) error {
	doc, err := evaluation.ReadFile(path)
	if err != nil {
		return err
	}
	a.Runner.Stop()
	return evaluation.Apply(ctx, doc, a.Engine, a.Sheet)
}

// Reset stops any scenario and clears the conversation.
func (a *App) Reset(ctx context.Context, confirmed bool) error {
	return a.Engine.Reset(ctx, confirmed)
}

// Close detaches the runner and closes the session store.
func (a *App) Close() error {
	a.Runner.Close()
	if err := a.session.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
		return fmt.Errorf("close session store: %w", err)
	}
	return nil
}
