// Package mcpserver exposes devserve operations as Model Context Protocol
// tools over stdio, so agent tooling can drive the orchestrator headlessly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/devlocal-io/devserve/internal/classifier"
	"github.com/devlocal-io/devserve/internal/config"
	"github.com/devlocal-io/devserve/internal/inspector"
	"github.com/devlocal-io/devserve/internal/orchestrator"
	"github.com/devlocal-io/devserve/internal/runner"
)

// Server bridges MCP tool calls to the orchestration core.
type Server struct {
	mcpServer *server.MCPServer
	orch      *orchestrator.Orchestrator
	project   *config.Project
	inspect   *inspector.Inspector
	classify  *classifier.Classifier
	reclaimer *runner.Coordinator
}

// New assembles the MCP server and registers its tools.
func New(version string, orch *orchestrator.Orchestrator, project *config.Project, ins *inspector.Inspector, cls *classifier.Classifier, reclaimer *runner.Coordinator) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("devserve", version, server.WithToolCapabilities(false)),
		orch:      orch,
		project:   project,
		inspect:   ins,
		classify:  cls,
		reclaimer: reclaimer,
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("run_start",
		mcp.WithDescription("Start the project's dev server, resolving any port conflict without prompting."),
	), s.handleRunStart)

	s.mcpServer.AddTool(mcp.NewTool("run_stop",
		mcp.WithDescription("Stop the active dev server run. Succeeds trivially when nothing is running."),
	), s.handleRunStop)

	s.mcpServer.AddTool(mcp.NewTool("run_status",
		mcp.WithDescription("Report the state, port, and PID of the active run."),
	), s.handleRunStatus)

	s.mcpServer.AddTool(mcp.NewTool("port_inspect",
		mcp.WithDescription("Identify the process bound to a TCP port and whether it looks like a dev server."),
		mcp.WithNumber("port", mcp.Required(), mcp.Description("TCP port to inspect")),
	), s.handlePortInspect)

	s.mcpServer.AddTool(mcp.NewTool("port_free",
		mcp.WithDescription("Forcibly terminate every process bound to a TCP port and verify it was released."),
		mcp.WithNumber("port", mcp.Required(), mcp.Description("TCP port to free")),
	), s.handlePortFree)
}

func (s *Server) handleRunStart(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := s.orch.Start(ctx, s.project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"project": s.project.Name,
		"port":    handle.Port(),
		"pid":     handle.PID(),
		"url":     fmt.Sprintf("http://localhost:%d", handle.Port()),
		"state":   handle.State().String(),
	})
}

func (s *Server) handleRunStop(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.orch.Stop(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	response := map[string]interface{}{"state": s.orch.State().String()}
	if result.Warning != nil {
		response["warning"] = result.Warning.Error()
	}
	return jsonResult(response)
}

func (s *Server) handleRunStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{"state": s.orch.State().String()}
	if handle := s.orch.Handle(); handle != nil {
		response["port"] = handle.Port()
		response["pid"] = handle.PID()
		response["project"] = handle.Project().Name
	}
	return jsonResult(response)
}

func (s *Server) handlePortInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	port, err := portArgument(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := s.inspect.Inspect(ctx, port)
	if err != nil {
		return jsonResult(map[string]interface{}{"port": port, "occupied": false})
	}

	info.OwnEcosystem = s.classify.Classify(*info)
	return jsonResult(map[string]interface{}{
		"port":         port,
		"occupied":     true,
		"pid":          info.PID,
		"command":      info.CommandLine(),
		"ownEcosystem": info.OwnEcosystem,
		"projectName":  info.ProjectName,
		"workspace":    info.WorkspacePath,
	})
}

func (s *Server) handlePortFree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	port, err := portArgument(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.reclaimer.ReclaimPort(ctx, port, "port_free tool invocation"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{"port": port, "freed": true})
}

// portArgument extracts and validates the port tool argument.
func portArgument(request mcp.CallToolRequest) (int, error) {
	args := request.GetArguments()
	raw, ok := args["port"].(float64)
	if !ok {
		return 0, fmt.Errorf("invalid or missing port argument")
	}
	port := int(raw)
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("port %d is outside valid range 1-65535", port)
	}
	return port, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
