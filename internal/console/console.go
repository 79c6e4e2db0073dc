// Package console is the interactive tester surface: a line-oriented REPL
// over a running session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/comigor/mrlift-console/internal/app"
	"github.com/comigor/mrlift-console/internal/classifier"
	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/engine"
	"github.com/comigor/mrlift-console/internal/logger"
	"github.com/comigor/mrlift-console/internal/scenario"
)

var errQuit = errors.New("quit")

// Console reads tester input line by line. Plain lines are sent to the
// assistant; lines starting with "/" are commands.
type Console struct {
	app *app.App
	in  *bufio.Scanner
	out io.Writer

	mu       sync.Mutex // guards out and showMeta
	showMeta bool
}

// New returns a console reading from in and printing to out.
func New(a *app.App, in io.Reader, out io.Writer) *Console {
	return &Console{app: a, in: bufio.NewScanner(in), out: out}
}

// Run prints turns as the conversation changes and processes input until
// EOF, /quit or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	unsubscribe := c.app.Engine.Subscribe(c.render)
	defer unsubscribe()

	c.printf("Mr. Lift QA console. Type /help for commands.\n")
	if n := len(c.app.Engine.Snapshot().Messages); n > 0 {
		c.printf("Restored %d messages from the last session.\n", n)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, ok := c.readLine()
		if !ok {
			return c.in.Err()
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		err := c.handle(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			c.printf("error: %v\n", err)
		}
	}
}

func (c *Console) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return c.in.Text(), true
}

func (c *Console) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return c.send(ctx, line)
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return cmd.run(c, ctx, arg)
}

func (c *Console) send(ctx context.Context, text string) error {
	return surface(c.app.Engine.Send(ctx, text))
}

// surface keeps the errors the tester has to see. Transport failures were
// already printed from the engine event.
func surface(err error) error {
	switch {
	case err == nil, errors.Is(err, engine.ErrStaleReply):
		return nil
	case errors.Is(err, engine.ErrEmptyInput), errors.Is(err, engine.ErrBusy), errors.Is(err, scenario.ErrEmptyScenario):
		return err
	default:
		logger.L.Debug("send failed", "error", err)
		return nil
	}
}

// render runs under the engine lock; it only writes output.
func (c *Console) render(ev engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Kind {
	case engine.EventUserTurn:
		fmt.Fprintf(c.out, "[USER] %s\n", ev.Message.Content)
	case engine.EventAssistantTurn:
		fmt.Fprintf(c.out, "[ASSISTANT] %s\n", ev.Message.Content)
		if tags := c.app.Classifier.Classify(ev.Message.Content); len(tags) > 0 {
			fmt.Fprintf(c.out, "  tags: %s\n", formatTags(tags))
		}
		if c.showMeta && ev.Message.Meta != nil {
			fmt.Fprintf(c.out, "  %s\n", ev.Message.Meta.String())
		}
	case engine.EventSendFailed:
		fmt.Fprintf(c.out, "! %s\n", ev.State.Err)
	case engine.EventReset:
		fmt.Fprintln(c.out, "-- conversation reset --")
	case engine.EventRestored:
		fmt.Fprintf(c.out, "-- conversation imported (%d messages) --\n", len(ev.State.Messages))
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func formatTags(tags []classifier.Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = fmt.Sprintf("[%s] %s", t.Kind, t.Label)
	}
	return strings.Join(parts, ", ")
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func verdictLabel(ev domain.Evaluation) string {
	if ev.Score == nil {
		return "unset"
	}
	if opt, ok := domain.Lookup(domain.Verdicts, string(*ev.Score)); ok {
		return fmt.Sprintf("%s (%s)", opt.ID, opt.Label)
	}
	return string(*ev.Score)
}
