package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"casefiling/backend/pkg/models"
)

// GenerateForm assembles and stores a submission for a case. A request
// missing required data is answered with 200 and success=false.
// (POST /api/v1/forms/generate)
func (s *Server) GenerateForm(c echo.Context) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	var req models.GenerationRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	req.UserID = userID

	res, err := s.Engine.GenerateForm(c.Request().Context(), req)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Success {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

// GetSubmission returns a stored submission
// (GET /api/v1/submissions/:id)
func (s *Server) GetSubmission(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	sub, err := s.Submissions.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sub)
}

// StatusUpdateRequest is the body of POST /api/v1/submissions/:id/status.
type StatusUpdateRequest struct {
	Status models.SubmissionStatus `json:"status"`
}

// UpdateSubmissionStatus records the outcome of a portal submission
// (POST /api/v1/submissions/:id/status)
func (s *Server) UpdateSubmissionStatus(c echo.Context) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	var req StatusUpdateRequest
	if err := decode(raw, &req); err != nil {
		return err
	}

	sub, err := s.Submissions.UpdateStatus(c.Request().Context(), id, req.Status, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sub)
}

// ListCaseSubmissions returns the submissions of a case, oldest first
// (GET /api/v1/cases/:caseId/submissions)
func (s *Server) ListCaseSubmissions(c echo.Context) error {
	caseID, err := pathParam(c, "caseId")
	if err != nil {
		return err
	}
	list, err := s.Submissions.ListByCase(c.Request().Context(), caseID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*models.FormSubmission{}
	}
	return c.JSON(http.StatusOK, submissionList{CaseID: caseID, Submissions: list})
}
