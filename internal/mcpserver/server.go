// Package mcpserver exposes the console operations as MCP tools over stdio,
// so test automation can drive the assistant the way a tester would.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/mrlift-console/internal/app"
	"github.com/comigor/mrlift-console/internal/classifier"
	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/engine"
	"github.com/comigor/mrlift-console/internal/logger"
)

const serverName = "mrlift-console"

// Server binds MCP tool handlers to a running session.
type Server struct {
	app *app.App
	mcp *server.MCPServer
}

// New registers every tool.
func New(a *app.App, version string) *Server {
	s := &Server{
		app: a,
		mcp: server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send one tester message to the assistant and return its reply with classifier tags."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
	), s.sendMessage)

	s.mcp.AddTool(mcp.NewTool("run_scenario",
		mcp.WithDescription("Run a scripted scenario to completion and return the transcript."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Scenario name, e.g. new_client")),
	), s.runScenario)

	s.mcp.AddTool(mcp.NewTool("reset_conversation",
		mcp.WithDescription("Clear the conversation, thread id and scenario queue."),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true; the reset cannot be undone")),
	), s.resetConversation)

	s.mcp.AddTool(mcp.NewTool("classify_reply",
		mcp.WithDescription("Tag a reply text with the heuristic classifier."),
		mcp.WithString("text", mcp.Required()),
	), s.classifyReply)

	s.mcp.AddTool(mcp.NewTool("set_evaluation",
		mcp.WithDescription("Update the tester context and evaluation sheet. Only the given fields change."),
		mcp.WithString("mode", mcp.Description("Test mode id")),
		mcp.WithString("objective", mcp.Description("Test objective")),
		mcp.WithString("check", mcp.Description("Checklist item id to set")),
		mcp.WithBoolean("value", mcp.Description("Value for check; defaults to true")),
		mcp.WithString("verdict", mcp.Description("approved, observed, failed or none")),
		mcp.WithString("observations", mcp.Description("Free-text observations")),
	), s.setEvaluation)

	s.mcp.AddTool(mcp.NewTool("export_session",
		mcp.WithDescription("Write the session export document and return its path."),
		mcp.WithString("dir", mcp.Description("Target directory; defaults to the configured export dir")),
	), s.exportSession)

	s.mcp.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Return the conversation state, pending scenario turns and evaluation."),
	), s.getStatus)

	return s
}

// ServeStdio blocks serving the protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	logger.L.Info("mcp server listening on stdio", "name", serverName)
	return server.ServeStdio(s.mcp)
}

type replyResult struct {
	Reply    string           `json:"reply"`
	Tags     []classifier.Tag `json:"tags"`
	ThreadID string           `json:"thread_id,omitempty"`
	Meta     *domain.Meta     `json:"meta,omitempty"`
}

func (s *Server) sendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.app.Engine.Send(ctx, text); err != nil {
		return mcp.NewToolResultError(sendFailure(s.app.Engine.Snapshot(), err)), nil
	}
	st := s.app.Engine.Snapshot()
	if len(st.Messages) == 0 {
		return mcp.NewToolResultError("conversation was reset before the reply could be read"), nil
	}
	last := st.Messages[len(st.Messages)-1]
	return jsonResult(replyResult{
		Reply:    last.Content,
		Tags:     s.app.Classifier.Classify(last.Content),
		ThreadID: st.ThreadID,
		Meta:     last.Meta,
	})
}

func (s *Server) runScenario(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.app.RunScenario(ctx, name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(domain.Transcript(s.app.Engine.Snapshot().Messages)), nil
}

func (s *Server) resetConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.app.Reset(ctx, req.GetBool("confirm", false)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("conversation reset"), nil
}

func (s *Server) classifyReply(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.app.Classifier.Classify(text))
}

func (s *Server) setEvaluation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sheet := s.app.Sheet
	var errs []error
	if _, ok := args["mode"]; ok {
		errs = append(errs, sheet.SetMode(ctx, req.GetString("mode", "")))
	}
	if _, ok := args["objective"]; ok {
		errs = append(errs, sheet.SetObjective(ctx, req.GetString("objective", "")))
	}
	if _, ok := args["check"]; ok {
		errs = append(errs, sheet.SetCheck(ctx, req.GetString("check", ""), req.GetBool("value", true)))
	}
	if _, ok := args["verdict"]; ok {
		if v := req.GetString("verdict", ""); v == "" || v == "none" {
			errs = append(errs, sheet.ClearVerdict(ctx))
		} else {
			errs = append(errs, sheet.SetVerdict(ctx, v))
		}
	}
	if _, ok := args["observations"]; ok {
		errs = append(errs, sheet.SetObservations(ctx, req.GetString("observations", "")))
	}
	if err := errors.Join(errs...); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		Context    domain.TestContext `json:"context"`
		Evaluation domain.Evaluation  `json:"evaluation"`
	}{sheet.Context(), sheet.Evaluation()})
}

func (s *Server) exportSession(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.app.ExportSession(req.GetString("dir", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(path), nil
}

type statusResult struct {
	ThreadID   string             `json:"thread_id,omitempty"`
	Messages   int                `json:"messages"`
	InFlight   bool               `json:"in_flight"`
	LastError  string             `json:"last_error,omitempty"`
	Pending    []string           `json:"pending"`
	Context    domain.TestContext `json:"context"`
	Evaluation domain.Evaluation  `json:"evaluation"`
}

func (s *Server) getStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.app.Engine.Snapshot()
	pending := s.app.Runner.Pending()
	if pending == nil {
		pending = []string{}
	}
	return jsonResult(statusResult{
		ThreadID:   st.ThreadID,
		Messages:   len(st.Messages),
		InFlight:   st.InFlight,
		LastError:  st.Err,
		Pending:    pending,
		Context:    s.app.Sheet.Context(),
		Evaluation: s.app.Sheet.Evaluation(),
	})
}

// sendFailure prefers the tester-facing text the engine recorded.
func sendFailure(st engine.State, err error) string {
	if st.Err != "" && !errors.Is(err, engine.ErrBusy) && !errors.Is(err, engine.ErrEmptyInput) {
		return st.Err
	}
	return err.Error()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
