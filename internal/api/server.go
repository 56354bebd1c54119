// Package api contains the HTTP handlers for the case filing service
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"casefiling/backend/internal/auth"
	"casefiling/backend/internal/services"
	"casefiling/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Server holds the dependencies for the API server.
type Server struct {
	Templates   *services.TemplateService
	Mappings    *services.MappingService
	Submissions *services.SubmissionService
	Engine      *services.Engine
	Schemas     *services.SchemaValidator
	Logger      Logger
	Ready       func(ctx context.Context) error
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// Version is reported by the health endpoint.
var Version = "dev"

// RegisterRoutes mounts the REST API. authMW authenticates every /api/v1
// route; template and mapping writes additionally require an administrator.
func (s *Server) RegisterRoutes(e *echo.Echo, authMW echo.MiddlewareFunc, metrics http.Handler) {
	e.GET("/health", s.HandleHealth)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	v1 := e.Group("/api/v1", authMW)

	v1.POST("/templates", s.CreateTemplate, auth.RequireAdmin)
	v1.GET("/templates/:id", s.GetTemplate)
	v1.PATCH("/templates/:id", s.UpdateTemplate, auth.RequireAdmin)
	v1.POST("/templates/:id/publish", s.PublishTemplate, auth.RequireAdmin)
	v1.POST("/templates/:id/archive", s.ArchiveTemplate, auth.RequireAdmin)
	v1.GET("/templates/:id/mappings", s.ListTemplateMappings)
	v1.GET("/template-families/:id/versions", s.ListVersions)
	v1.GET("/template-families/:id/current", s.GetCurrentPublished)

	v1.POST("/mappings", s.CreateMapping, auth.RequireAdmin)
	v1.GET("/mappings/:id", s.GetMapping)
	v1.PATCH("/mappings/:id", s.UpdateMapping, auth.RequireAdmin)
	v1.DELETE("/mappings/:id", s.DeleteMapping, auth.RequireAdmin)

	v1.POST("/forms/generate", s.GenerateForm)
	v1.GET("/submissions/:id", s.GetSubmission)
	v1.POST("/submissions/:id/status", s.UpdateSubmissionStatus)
	v1.GET("/cases/:caseId/submissions", s.ListCaseSubmissions)
}

// HandleHealth reports liveness, and readiness of the store when a probe is set.
// (GET /health)
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "casefiling",
		Version:   Version,
	}
	if s.Ready != nil {
		if err := s.Ready(c.Request().Context()); err != nil {
			status.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return c.JSON(http.StatusOK, status)
}

// actor returns the authenticated user id placed in the context by the auth
// middleware.
func actor(c echo.Context) (string, error) {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok || p.UserID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return p.UserID, nil
}

func pathParam(c echo.Context, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid format for parameter "+name+": "+err.Error())
	}
	return v, nil
}

// submissionList is the response of GET /cases/:caseId/submissions.
type submissionList struct {
	CaseID      string                   `json:"caseId"`
	Submissions []*models.FormSubmission `json:"submissions"`
}
