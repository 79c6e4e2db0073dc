package console

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/scenario"
)

type command struct {
	usage string
	help  string
	run   func(c *Console, ctx context.Context, arg string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":      {"/help", "show this help", (*Console).cmdHelp},
		"quick":     {"/quick N", "send quick prompt N (no N lists them)", (*Console).cmdQuick},
		"scenarios": {"/scenarios", "list scripted scenarios", (*Console).cmdScenarios},
		"run":       {"/run NAME", "start a scripted scenario", (*Console).cmdRun},
		"stop":      {"/stop", "drop the rest of the running scenario", (*Console).cmdStop},
		"reset":     {"/reset", "clear the conversation (asks for confirmation)", (*Console).cmdReset},
		"mode":      {"/mode ID", "set the test mode (no ID lists them)", (*Console).cmdMode},
		"objective": {"/objective TEXT", "set the test objective", (*Console).cmdObjective},
		"check":     {"/check ID", "toggle a checklist item (no ID shows the checklist)", (*Console).cmdCheck},
		"verdict":   {"/verdict V|none", "set approved, observed, failed or clear it", (*Console).cmdVerdict},
		"notes":     {"/notes TEXT", "set the observations", (*Console).cmdNotes},
		"meta":      {"/meta", "toggle run id and duration under replies", (*Console).cmdMeta},
		"copy":      {"/copy", "print the transcript", (*Console).cmdCopy},
		"export":    {"/export [DIR]", "write the session to a JSON file", (*Console).cmdExport},
		"import":    {"/import FILE", "load an exported session", (*Console).cmdImport},
		"status":    {"/status", "show the session state", (*Console).cmdStatus},
		"quit":      {"/quit", "leave the console", (*Console).cmdQuit},
	}
}

func (c *Console) cmdHelp(_ context.Context, _ string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Type a message to send it. Commands:\n")
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(&b, "  %-18s %s\n", cmd.usage, cmd.help)
	}
	c.printf("%s", b.String())
	return nil
}

func (c *Console) cmdQuick(ctx context.Context, arg string) error {
	if arg == "" {
		var b strings.Builder
		for i, p := range scenario.QuickPrompts {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
		}
		c.printf("%s", b.String())
		return nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("quick prompt number expected, got %q", arg)
	}
	prompt, err := scenario.QuickPrompt(n)
	if err != nil {
		return err
	}
	return c.send(ctx, prompt)
}

func (c *Console) cmdScenarios(_ context.Context, _ string) error {
	var b strings.Builder
	for _, s := range c.app.Catalog.List() {
		fmt.Fprintf(&b, "  %-18s %d turns: %s\n", s.Name, len(s.Prompts), strings.Join(s.Prompts, " | "))
	}
	c.printf("%s", b.String())
	return nil
}

func (c *Console) cmdRun(ctx context.Context, arg string) error {
	if arg == "" {
		return fmt.Errorf("usage: /run NAME")
	}
	sc, err := c.app.Catalog.Get(arg)
	if err != nil {
		return err
	}
	c.printf("-- running %s (%d turns) --\n", sc.Name, len(sc.Prompts))
	if err := c.app.Runner.Start(ctx, sc.Prompts); err != nil {
		return surface(err)
	}
	return nil
}

func (c *Console) cmdStop(_ context.Context, _ string) error {
	dropped := len(c.app.Runner.Pending())
	c.app.Runner.Stop()
	c.printf("-- scenario stopped, %d turns dropped --\n", dropped)
	return nil
}

func (c *Console) cmdReset(ctx context.Context, _ string) error {
	c.printf("Clear the whole conversation? [y/N] ")
	answer, _ := c.readLine()
	answer = strings.ToLower(strings.TrimSpace(answer))
	confirmed := answer == "y" || answer == "yes" || answer == "s" || answer == "si" || answer == "sí"
	if !confirmed {
		c.printf("reset cancelled\n")
		return nil
	}
	return c.app.Reset(ctx, true)
}

func (c *Console) cmdMode(ctx context.Context, arg string) error {
	if arg == "" {
		current := c.app.Sheet.Context().TestMode
		var b strings.Builder
		for _, m := range domain.TestModes {
			marker := " "
			if m.ID == current {
				marker = "*"
			}
			fmt.Fprintf(&b, "  %s %-18s %s\n", marker, m.ID, m.Label)
		}
		c.printf("%s", b.String())
		return nil
	}
	return c.app.Sheet.SetMode(ctx, arg)
}

func (c *Console) cmdObjective(ctx context.Context, arg string) error {
	return c.app.Sheet.SetObjective(ctx, arg)
}

func (c *Console) cmdCheck(ctx context.Context, arg string) error {
	if arg == "" {
		checks := c.app.Sheet.Evaluation().Checks
		var b strings.Builder
		for _, item := range domain.Checklist {
			fmt.Fprintf(&b, "  %s %-20s %s\n", checkbox(checks[item.ID]), item.ID, item.Label)
		}
		c.printf("%s", b.String())
		return nil
	}
	on, err := c.app.Sheet.ToggleCheck(ctx, arg)
	if err != nil {
		return err
	}
	c.printf("%s %s\n", checkbox(on), arg)
	return nil
}

func (c *Console) cmdVerdict(ctx context.Context, arg string) error {
	if arg == "" || strings.EqualFold(arg, "none") {
		return c.app.Sheet.ClearVerdict(ctx)
	}
	return c.app.Sheet.SetVerdict(ctx, strings.ToLower(arg))
}

func (c *Console) cmdNotes(ctx context.Context, arg string) error {
	return c.app.Sheet.SetObservations(ctx, arg)
}

func (c *Console) cmdMeta(_ context.Context, _ string) error {
	c.mu.Lock()
	c.showMeta = !c.showMeta
	on := c.showMeta
	c.mu.Unlock()
	if on {
		c.printf("meta display on\n")
	} else {
		c.printf("meta display off\n")
	}
	return nil
}

func (c *Console) cmdCopy(_ context.Context, _ string) error {
	c.printf("%s\n", domain.Transcript(c.app.Engine.Snapshot().Messages))
	return nil
}

func (c *Console) cmdExport(_ context.Context, arg string) error {
	path, err := c.app.ExportSession(arg)
	if err != nil {
		return err
	}
	c.printf("exported to %s\n", path)
	return nil
}

func (c *Console) cmdImport(ctx context.Context, arg string) error {
	if arg == "" {
		return fmt.Errorf("usage: /import FILE")
	}
	return c.app.Import(ctx, arg)
}

func (c *Console) cmdStatus(_ context.Context, _ string) error {
	st := c.app.Engine.Snapshot()
	tc := c.app.Sheet.Context()
	ev := c.app.Sheet.Evaluation()
	thread := st.ThreadID
	if thread == "" {
		thread = "none"
	}
	checked := 0
	for _, on := range ev.Checks {
		if on {
			checked++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  mode:      %s\n", tc.TestMode)
	fmt.Fprintf(&b, "  objective: %s\n", tc.TestObjective)
	fmt.Fprintf(&b, "  thread:    %s\n", thread)
	fmt.Fprintf(&b, "  messages:  %d\n", len(st.Messages))
	fmt.Fprintf(&b, "  in flight: %t\n", st.InFlight)
	fmt.Fprintf(&b, "  queued:    %d\n", len(c.app.Runner.Pending()))
	fmt.Fprintf(&b, "  checks:    %d/%d\n", checked, len(domain.Checklist))
	fmt.Fprintf(&b, "  verdict:   %s\n", verdictLabel(ev))
	if st.Err != "" {
		fmt.Fprintf(&b, "  last error: %s\n", st.Err)
	}
	c.printf("%s", b.String())
	return nil
}

func (c *Console) cmdQuit(_ context.Context, _ string) error {
	return errQuit
}
