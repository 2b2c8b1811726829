package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/api/middleware"
	"github.com/genmedia/backend/internal/modules/workflow"
)

// WorkflowHandler handles workflow persistence endpoints
type WorkflowHandler struct {
	workflows   *workflow.Service
	adminEmails map[string]struct{}
	logger      *zap.Logger
}

// NewWorkflowHandler creates a new workflow handler. Only admin emails may
// publish public templates.
func NewWorkflowHandler(svc *workflow.Service, adminEmails []string, logger *zap.Logger) *WorkflowHandler {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(email)] = struct{}{}
	}
	return &WorkflowHandler{
		workflows:   svc,
		adminEmails: admins,
		logger:      logger,
	}
}

// SaveWorkflowRequest creates or updates a workflow
type SaveWorkflowRequest struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	IsPublic        bool            `json:"is_public,omitempty"`
	Nodes           json.RawMessage `json:"nodes"`
	Edges           json.RawMessage `json:"edges,omitempty"`
	Thumbnail       string          `json:"thumbnail,omitempty"`
	BackgroundImage string          `json:"background_image,omitempty"`
}

func (r *SaveWorkflowRequest) toParams() workflow.SaveParams {
	return workflow.SaveParams{
		Name:            r.Name,
		Description:     r.Description,
		IsPublic:        r.IsPublic,
		Nodes:           r.Nodes,
		Edges:           r.Edges,
		Thumbnail:       r.Thumbnail,
		BackgroundImage: r.BackgroundImage,
	}
}

func (h *WorkflowHandler) isAdmin(r *http.Request) bool {
	user := middleware.GetUser(r.Context())
	if user == nil {
		return false
	}
	_, ok := h.adminEmails[strings.ToLower(user.Email)]
	return ok
}

// CreateWorkflow saves a new workflow
func (h *WorkflowHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req SaveWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	if req.IsPublic && !h.isAdmin(r) {
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "only admins can create public templates")
		return
	}

	user := middleware.GetUser(r.Context())
	workflowID, err := h.workflows.Create(r.Context(), user.ID, user.Email, req.toParams())
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	h.logger.Info("Workflow saved",
		zap.String("workflow_id", workflowID),
		zap.String("user_id", user.ID),
		zap.String("name", req.Name),
	)

	writeJSON(w, http.StatusCreated, map[string]string{"id": workflowID})
}

// ListWorkflows lists workflows by scope ("my" or "public")
func (h *WorkflowHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	workflows, err := h.workflows.List(r.Context(), scope, userID(r), limit)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	if workflows == nil {
		workflows = []*workflow.Workflow{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": workflows})
}

// GetWorkflow returns a single workflow
func (h *WorkflowHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.workflows.Get(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wf)
}

// UpdateWorkflow replaces a workflow's content
func (h *WorkflowHandler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req SaveWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	if req.IsPublic && !h.isAdmin(r) {
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "only admins can create public templates")
		return
	}

	err := h.workflows.Update(r.Context(), chi.URLParam(r, "id"), userID(r), req.toParams())
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Workflow updated successfully"})
}

// DeleteWorkflow removes a workflow
func (h *WorkflowHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	err := h.workflows.Delete(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Workflow deleted successfully"})
}

func (h *WorkflowHandler) writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "workflow not found")
	case errors.Is(err, workflow.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "access denied")
	default:
		var validationErr *workflow.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		h.logger.Error("Workflow operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
