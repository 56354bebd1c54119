// Package mcp exposes form generation to agents as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"casefiling/backend/internal/auth"
	"casefiling/backend/internal/services"
	"casefiling/backend/pkg/apperr"
	"casefiling/backend/pkg/models"
)

type Server struct {
	mcpServer   *server.MCPServer
	engine      *services.Engine
	templates   *services.TemplateService
	submissions *services.SubmissionService
}

func NewServer(engine *services.Engine, templates *services.TemplateService, submissions *services.SubmissionService, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Case Filing Forms",
			version,
			server.WithToolCapabilities(true),
		),
		engine:      engine,
		templates:   templates,
		submissions: submissions,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_form",
			mcp.WithDescription("Generate a government form for a case from a template, filling gaps from case data"),
			mcp.WithString("template_id", mcp.Required(), mcp.Description("Template version ID, or family ID for the current published version")),
			mcp.WithString("case_id", mcp.Required(), mcp.Description("The case the form is filed for")),
			mcp.WithObject("form_data", mcp.Description("Field values keyed by field ID; they take precedence over case data")),
			mcp.WithString("target_portal_id", mcp.Description("Portal to translate the submission for")),
		),
		s.handleGenerateForm,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_template",
			mcp.WithDescription("Fetch a form template and its fields"),
			mcp.WithString("template_id", mcp.Required(), mcp.Description("Template version ID or family ID")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetTemplate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_case_submissions",
			mcp.WithDescription("List the forms generated for a case, oldest first"),
			mcp.WithString("case_id", mcp.Required(), mcp.Description("The case ID")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleListCaseSubmissions,
	)
}

func (s *Server) handleGenerateForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Not authenticated"), nil
	}
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: template_id"), nil
	}
	caseID, err := request.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: case_id"), nil
	}
	var formData map[string]any
	if raw, present := request.GetArguments()["form_data"]; present && raw != nil {
		formData, ok = raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("form_data must be an object"), nil
		}
	}

	res, err := s.engine.GenerateForm(ctx, models.GenerationRequest{
		TemplateID:     templateID,
		CaseID:         caseID,
		FormData:       formData,
		UserID:         p.UserID,
		TargetPortalID: request.GetString("target_portal_id", ""),
	})
	if err != nil {
		return toolError("Failed to generate form", err), nil
	}
	return mcp.NewToolResultJSON(res)
}

func (s *Server) handleGetTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: template_id"), nil
	}

	tpl, err := s.templates.ResolveTemplate(ctx, templateID)
	if err != nil {
		return toolError("Failed to get template", err), nil
	}
	return mcp.NewToolResultJSON(tpl)
}

func (s *Server) handleListCaseSubmissions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := request.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: case_id"), nil
	}

	list, err := s.submissions.ListByCase(ctx, caseID)
	if err != nil {
		return toolError("Failed to list submissions", err), nil
	}
	if list == nil {
		list = []*models.FormSubmission{}
	}
	return mcp.NewToolResultJSON(map[string]any{"caseId": caseID, "submissions": list})
}

// toolError keeps internal causes out of agent-visible text.
func toolError(prefix string, err error) *mcp.CallToolResult {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, appErr))
	}
	return mcp.NewToolResultError(prefix + ": internal error")
}

// MountHTTPHandlers serves the MCP SSE transport under /mcp. requireAuth
// guards every endpoint and the caller's principal is handed to tool calls.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer, requireAuth func(http.Handler) http.Handler) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if p, ok := auth.PrincipalFrom(r.Context()); ok {
				return auth.WithPrincipal(ctx, p)
			}
			return ctx
		}),
	)

	mux.Handle("/mcp", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})))

	// SSE endpoints
	mux.Handle("/mcp/sse", requireAuth(sseServer))
	mux.Handle("/mcp/message", requireAuth(sseServer))
}
