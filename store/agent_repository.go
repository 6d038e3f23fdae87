package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AgentRepository reads and writes agent directory profiles.
type AgentRepository struct {
	db  bun.IDB
	now func() time.Time
}

// NewAgentRepository returns a repository backed by db.
func NewAgentRepository(db bun.IDB) *AgentRepository {
	return &AgentRepository{db: db, now: time.Now}
}

// Create inserts a profile. A user owns at most one profile.
func (r *AgentRepository) Create(ctx context.Context, a *Agent) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.UserID == "" {
		return invalid("agent user is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return invalid("agent name is required")
	}
	now := r.now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(a).Exec(ctx); err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// Get loads a profile by ID.
func (r *AgentRepository) Get(ctx context.Context, id string) (*Agent, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUser loads the profile owned by userID.
func (r *AgentRepository) GetByUser(ctx context.Context, userID string) (*Agent, error) {
	return r.getBy(ctx, "user_id", userID)
}

func (r *AgentRepository) getBy(ctx context.Context, column, value string) (*Agent, error) {
	a := new(Agent)
	err := r.db.NewSelect().
		Model(a).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select agent: %w", err)
	}
	return a, nil
}

// LoadAgent satisfies agentcache.Loader.
func (r *AgentRepository) LoadAgent(ctx context.Context, id string) (*Agent, error) {
	return r.Get(ctx, id)
}

// List returns profiles ordered by name.
func (r *AgentRepository) List(ctx context.Context, limit, offset int) ([]*Agent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	agents := make([]*Agent, 0)
	err := r.db.NewSelect().
		Model(&agents).
		OrderExpr("? ASC, ? ASC", bun.Ident("name"), bun.Ident("id")).
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// Update writes the editable profile fields.
func (r *AgentRepository) Update(ctx context.Context, a *Agent) error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("agent name is required")
	}
	a.UpdatedAt = r.now().UTC()

	res, err := r.db.NewUpdate().
		Model(a).
		Column("name", "email", "phone", "agency", "bio", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return expectAffected(res)
}
