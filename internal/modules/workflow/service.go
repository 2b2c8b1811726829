package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/shared/database"
)

const (
	// MaxNameLength caps workflow names.
	MaxNameLength = 100
	// MaxNodes caps the node graph size per workflow.
	MaxNodes = 100
)

var (
	// ErrNotFound is returned when a workflow does not exist.
	ErrNotFound = errors.New("workflow not found")
	// ErrAccessDenied is returned when a workflow belongs to another user
	// and is not public.
	ErrAccessDenied = errors.New("access denied")
)

// Workflow is a saved editor graph: nodes, edges and presentation extras.
type Workflow struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	UserEmail       string          `json:"user_email,omitempty"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	IsPublic        bool            `json:"is_public"`
	Nodes           json.RawMessage `json:"nodes"`
	Edges           json.RawMessage `json:"edges,omitempty"`
	Thumbnail       string          `json:"thumbnail,omitempty"`
	BackgroundImage string          `json:"background_image,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ValidationError marks a structurally invalid workflow document.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// SaveParams contains fields for creating or updating a workflow
type SaveParams struct {
	Name            string
	Description     string
	IsPublic        bool
	Nodes           json.RawMessage
	Edges           json.RawMessage
	Thumbnail       string
	BackgroundImage string
}

// Validate checks the structural limits on a workflow document
func (p *SaveParams) Validate() error {
	if p.Name == "" {
		return &ValidationError{Reason: "name is required"}
	}
	if len(p.Name) > MaxNameLength {
		return &ValidationError{Reason: fmt.Sprintf("name exceeds %d characters", MaxNameLength)}
	}

	var nodes []json.RawMessage
	if err := json.Unmarshal(p.Nodes, &nodes); err != nil {
		return &ValidationError{Reason: "nodes must be a JSON array"}
	}
	if len(nodes) == 0 {
		return &ValidationError{Reason: "at least one node is required"}
	}
	if len(nodes) > MaxNodes {
		return &ValidationError{Reason: fmt.Sprintf("workflow exceeds %d nodes", MaxNodes)}
	}

	if len(p.Edges) > 0 {
		var edges []json.RawMessage
		if err := json.Unmarshal(p.Edges, &edges); err != nil {
			return &ValidationError{Reason: "edges must be a JSON array"}
		}
	}

	return nil
}

// Service persists workflows in Postgres
type Service struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewService creates a new workflow service
func NewService(db *database.Postgres, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Create stores a new workflow and returns its ID
func (s *Service) Create(ctx context.Context, userID, userEmail string, params SaveParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	workflowID := uuid.New().String()
	now := time.Now()

	edges := params.Edges
	if len(edges) == 0 {
		edges = json.RawMessage("[]")
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO workflows (id, user_id, user_email, name, description, is_public, nodes, edges, thumbnail, background_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, workflowID, userID, userEmail, params.Name, params.Description, params.IsPublic,
		[]byte(params.Nodes), []byte(edges), nullIfEmpty(params.Thumbnail), nullIfEmpty(params.BackgroundImage), now)
	if err != nil {
		return "", fmt.Errorf("failed to insert workflow: %w", err)
	}

	s.logger.Info("Workflow created",
		zap.String("workflow_id", workflowID),
		zap.String("user_id", userID),
		zap.String("name", params.Name),
		zap.Bool("is_public", params.IsPublic),
	)

	return workflowID, nil
}

// List returns workflows by scope: "my" for the user's own, "public" for
// shared templates.
func (s *Service) List(ctx context.Context, scope, userID string, limit int) ([]*Workflow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var query string
	var args []interface{}

	switch scope {
	case "my":
		query = `
			SELECT id, user_id, user_email, name, description, is_public, nodes, edges, thumbnail, background_image, created_at, updated_at
			FROM workflows WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2`
		args = []interface{}{userID, limit}
	case "public":
		query = `
			SELECT id, user_id, user_email, name, description, is_public, nodes, edges, thumbnail, background_image, created_at, updated_at
			FROM workflows WHERE is_public ORDER BY updated_at DESC LIMIT $1`
		args = []interface{}{limit}
	default:
		return nil, &ValidationError{Reason: "scope must be 'my' or 'public'"}
	}

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}

	return workflows, rows.Err()
}

// Get returns a workflow if the user owns it or it is public
func (s *Service) Get(ctx context.Context, workflowID, userID string) (*Workflow, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, user_email, name, description, is_public, nodes, edges, thumbnail, background_image, created_at, updated_at
		FROM workflows WHERE id = $1
	`, workflowID)

	wf, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if wf.UserID != userID && !wf.IsPublic {
		return nil, ErrAccessDenied
	}

	return wf, nil
}

// Update replaces a workflow's content. Only the owner may update.
func (s *Service) Update(ctx context.Context, workflowID, userID string, params SaveParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	edges := params.Edges
	if len(edges) == 0 {
		edges = json.RawMessage("[]")
	}

	result, err := s.db.Pool.Exec(ctx, `
		UPDATE workflows
		SET name = $1, description = $2, is_public = $3, nodes = $4, edges = $5,
		    thumbnail = COALESCE($6, thumbnail), background_image = COALESCE($7, background_image),
		    updated_at = $8
		WHERE id = $9 AND user_id = $10
	`, params.Name, params.Description, params.IsPublic, []byte(params.Nodes), []byte(edges),
		nullIfEmpty(params.Thumbnail), nullIfEmpty(params.BackgroundImage), time.Now(), workflowID, userID)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish missing from not-owned.
		var exists bool
		if err := s.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM workflows WHERE id = $1)`, workflowID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrAccessDenied
		}
		return ErrNotFound
	}

	return nil
}

// Delete removes a workflow. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, workflowID, userID string) error {
	result, err := s.db.Pool.Exec(ctx, `
		DELETE FROM workflows WHERE id = $1 AND user_id = $2
	`, workflowID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := s.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM workflows WHERE id = $1)`, workflowID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrAccessDenied
		}
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row rowScanner) (*Workflow, error) {
	var wf Workflow
	var description, thumbnail, background *string
	var nodes, edges []byte

	err := row.Scan(
		&wf.ID, &wf.UserID, &wf.UserEmail, &wf.Name, &description, &wf.IsPublic,
		&nodes, &edges, &thumbnail, &background, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description != nil {
		wf.Description = *description
	}
	if thumbnail != nil {
		wf.Thumbnail = *thumbnail
	}
	if background != nil {
		wf.BackgroundImage = *background
	}
	wf.Nodes = json.RawMessage(nodes)
	wf.Edges = json.RawMessage(edges)

	return &wf, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
