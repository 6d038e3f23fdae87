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

	"github.com/MrEthical07/estateAuth/permission"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListingQuery narrows a listing search. Zero fields do not filter.
type ListingQuery struct {
	City        string
	Status      ListingStatus
	AgentID     string
	MinBedrooms int
	Limit       int
	Offset      int
}

// ListingRepository reads and writes listings under permission filters.
type ListingRepository struct {
	db  bun.IDB
	now func() time.Time
}

// NewListingRepository returns a repository backed by db.
func NewListingRepository(db bun.IDB) *ListingRepository {
	return &ListingRepository{db: db, now: time.Now}
}

// Create inserts l, assigning an ID and timestamps when unset.
func (r *ListingRepository) Create(ctx context.Context, l *Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = StatusDraft
	}
	now := r.now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	if err := l.Validate(); err != nil {
		return err
	}

	if _, err := r.db.NewInsert().Model(l).Exec(ctx); err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// Get loads one listing visible under filter.
func (r *ListingRepository) Get(ctx context.Context, id string, filter permission.Filter) (*Listing, error) {
	l := new(Listing)
	q := r.db.NewSelect().Model(l).Where("? = ?", bun.Ident("id"), id)
	q = applyFilter(q, filter)

	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select listing: %w", err)
	}
	return l, nil
}

// List returns listings visible under filter, newest first.
func (r *ListingRepository) List(ctx context.Context, query ListingQuery, filter permission.Filter) ([]*Listing, error) {
	listings := make([]*Listing, 0)
	q := r.db.NewSelect().Model(&listings)
	q = applyFilter(q, filter)

	if city := strings.TrimSpace(query.City); city != "" {
		q = q.Where("? = ? COLLATE NOCASE", bun.Ident("city"), city)
	}
	if query.Status != "" {
		q = q.Where("? = ?", bun.Ident("status"), query.Status)
	}
	if query.AgentID != "" {
		q = q.Where("? = ?", bun.Ident("agent_id"), query.AgentID)
	}
	if query.MinBedrooms > 0 {
		q = q.Where("? >= ?", bun.Ident("bedrooms"), query.MinBedrooms)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	err := q.OrderExpr("? DESC, ? ASC", bun.Ident("created_at"), bun.Ident("id")).
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

// Update writes the mutable columns of l when the stored row is visible under filter.
func (r *ListingRepository) Update(ctx context.Context, l *Listing, filter permission.Filter) error {
	if err := l.Validate(); err != nil {
		return err
	}
	l.UpdatedAt = r.now().UTC()

	q := r.db.NewUpdate().
		Model(l).
		Column("title", "description", "address", "city", "price", "bedrooms",
			"bathrooms", "area_sqm", "status", "agent_id", "updated_at").
		WherePK()
	q = applyFilter(q, filter)

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return expectAffected(res)
}

// SetStatus changes only the status column.
func (r *ListingRepository) SetStatus(ctx context.Context, id string, status ListingStatus, filter permission.Filter) error {
	if !status.Valid() {
		return invalid(fmt.Sprintf("unknown listing status %q", status))
	}

	q := r.db.NewUpdate().
		Model((*Listing)(nil)).
		Set("? = ?", bun.Ident("status"), status).
		Set("? = ?", bun.Ident("updated_at"), r.now().UTC()).
		Where("? = ?", bun.Ident("id"), id)
	q = applyFilter(q, filter)

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a listing visible under filter.
func (r *ListingRepository) Delete(ctx context.Context, id string, filter permission.Filter) error {
	q := r.db.NewDelete().
		Model((*Listing)(nil)).
		Where("? = ?", bun.Ident("id"), id)
	q = applyFilter(q, filter)

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
