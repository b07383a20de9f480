package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// StartCaseRequest opens a new investigation case.
type StartCaseRequest struct {
	Query string `json:"query"`
}

// CaseResponse is the external view of a case.
type CaseResponse struct {
	CaseID          string              `json:"case_id"`
	Query           string              `json:"query"`
	Status          domain.CaseStatus   `json:"status"`
	SuspendReason   string              `json:"suspend_reason,omitempty"`
	CompleteReason  string              `json:"complete_reason,omitempty"`
	FailReason      string              `json:"fail_reason,omitempty"`
	Turn            int                 `json:"turn"`
	Transcript      domain.Transcript   `json:"transcript"`
	PendingApproval *domain.Approval    `json:"pending_approval,omitempty"`
	CreatedAt       int64               `json:"created_at"`
	UpdatedAt       int64               `json:"updated_at"`
}

func caseResponse(c *domain.Case) CaseResponse {
	return CaseResponse{
		CaseID:          c.CaseID,
		Query:           c.Query,
		Status:          c.Status,
		SuspendReason:   c.SuspendReason,
		CompleteReason:  c.CompleteReason,
		FailReason:      c.FailReason,
		Turn:            c.Turn,
		Transcript:      c.Transcript,
		PendingApproval: c.PendingApproval,
		CreatedAt:       c.CreatedAt.UnixMilli(),
		UpdatedAt:       c.UpdatedAt.UnixMilli(),
	}
}

// StartCase opens a case and schedules its first run.
func (h *Handler) StartCase(c echo.Context) error {
	var req StartCaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	ctx := c.Request().Context()

	created, err := h.service.StartCase(ctx, req.Query)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, caseResponse(created))
}

// GetCase retrieves the persisted state of a case.
func (h *Handler) GetCase(c echo.Context) error {
	caseID := c.Param("case_id")
	ctx := c.Request().Context()

	cs, err := h.service.GetCase(ctx, caseID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, caseResponse(cs))
}

// ResumeCase re-schedules a suspended case.
func (h *Handler) ResumeCase(c echo.Context) error {
	caseID := c.Param("case_id")
	ctx := c.Request().Context()

	cs, err := h.service.ResumeCase(ctx, caseID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusAccepted, caseResponse(cs))
}

// SubmitApprovalRequest resolves a pending approval.
type SubmitApprovalRequest struct {
	ApprovalID string `json:"approval_id,omitempty"`
	Approve    bool   `json:"approve"`
	DecidedBy  string `json:"decided_by,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// SubmitApproval queues a decision for the case's open approval.
func (h *Handler) SubmitApproval(c echo.Context) error {
	caseID := c.Param("case_id")
	var req SubmitApprovalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctx := c.Request().Context()

	cs, err := h.service.SubmitApproval(ctx, caseID, domain.ApprovalDecision{
		ApprovalID: req.ApprovalID,
		Approve:    req.Approve,
		DecidedBy:  req.DecidedBy,
		Reason:     req.Reason,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusAccepted, caseResponse(cs))
}

// CancelCase stops a case at its next turn boundary.
func (h *Handler) CancelCase(c echo.Context) error {
	caseID := c.Param("case_id")
	ctx := c.Request().Context()

	cs, err := h.service.CancelCase(ctx, caseID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusAccepted, caseResponse(cs))
}

// GetCaseEvents retrieves the audit trail of a case.
func (h *Handler) GetCaseEvents(c echo.Context) error {
	caseID := c.Param("case_id")
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	ctx := c.Request().Context()

	events, err := h.service.GetCaseEvents(ctx, caseID, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"case_id": caseID,
		"events":  events,
	})
}
