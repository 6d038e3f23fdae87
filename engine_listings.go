package estateAuth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/estateAuth/permission"
	"github.com/MrEthical07/estateAuth/session"
	"github.com/MrEthical07/estateAuth/store"
)

// ListListings returns the listings s may read: everything for admins, owned records for
// users and agents, and published records for anonymous callers.
func (e *Engine) ListListings(ctx context.Context, s *session.Session, q store.ListingQuery) ([]*store.Listing, error) {
	if e == nil || e.listings == nil {
		return nil, ErrEngineNotReady
	}
	listings, err := e.listings.List(ctx, q, e.Filter(s, permission.ActionRead))
	if err != nil {
		return nil, storeError(err, ErrListingNotFound)
	}
	return listings, nil
}

// BrowseListings is the public catalogue: published listings regardless of the caller.
func (e *Engine) BrowseListings(ctx context.Context, q store.ListingQuery) ([]*store.Listing, error) {
	if e == nil || e.listings == nil {
		return nil, ErrEngineNotReady
	}
	q.Status = ""
	listings, err := e.listings.List(ctx, q, permission.PublicFilter())
	if err != nil {
		return nil, storeError(err, ErrListingNotFound)
	}
	return listings, nil
}

// GetListing returns a listing visible to s. Published listings are visible to everyone;
// anything else requires read access under the caller's filter. Invisible and missing
// listings both report ErrListingNotFound.
func (e *Engine) GetListing(ctx context.Context, s *session.Session, id string) (*store.Listing, error) {
	if e == nil || e.listings == nil {
		return nil, ErrEngineNotReady
	}

	filter := e.Filter(s, permission.ActionRead)
	l, err := e.listings.Get(ctx, id, filter)
	if errors.Is(err, store.ErrNotFound) && !filter.Equal(permission.PublicFilter()) {
		l, err = e.listings.Get(ctx, id, permission.PublicFilter())
	}
	if err != nil {
		return nil, storeError(err, ErrListingNotFound)
	}
	return l, nil
}

// CreateListing stores a new listing owned by the caller. Roles scoped to their own records
// cannot create on behalf of someone else; archiving at creation needs moderation rights.
func (e *Engine) CreateListing(ctx context.Context, s *session.Session, in ListingInput) (*store.Listing, error) {
	if e == nil || e.listings == nil {
		return nil, ErrEngineNotReady
	}
	if s == nil {
		return nil, ErrUnauthorized
	}

	filter := e.Filter(s, permission.ActionCreate)
	if filter.Deny {
		e.emitDenied(ctx, s, "listing", string(permission.ActionCreate))
		return nil, ErrPermissionDenied
	}

	l := &store.Listing{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		Price:       in.Price,
		Bedrooms:    in.Bedrooms,
		Bathrooms:   in.Bathrooms,
		AreaSqm:     in.AreaSqm,
		Status:      in.Status,
		AgentID:     in.AgentID,
		OwnerID:     in.OwnerID,
	}
	if l.OwnerID == "" {
		l.OwnerID = s.UserID
	}
	if l.Status == "" {
		l.Status = store.StatusDraft
	}

	if !filter.Matches(l.Fields()) {
		e.emitDenied(ctx, s, "listing", string(permission.ActionCreate))
		return nil, ErrPermissionDenied
	}
	if err := e.checkModeration(ctx, s, "", l.Status); err != nil {
		return nil, err
	}
	if err := e.resolveListingAgent(ctx, s, l); err != nil {
		return nil, err
	}

	if err := e.listings.Create(ctx, l); err != nil {
		return nil, storeError(err, ErrListingNotFound)
	}

	e.metricInc(MetricListingCreated)
	e.emitAudit(ctx, auditEventListingCreated, true, actorOf(s), "listing:"+l.ID, nil, nil)
	return l, nil
}

// UpdateListing applies patch to a listing the caller may update.
func (e *Engine) UpdateListing(ctx context.Context, s *session.Session, id string, patch ListingPatch) (*store.Listing, error) {
	if e == nil || e.listings == nil {
		return nil, ErrEngineNotReady
	}
	if s == nil {
		return nil, ErrUnauthorized
	}

	filter := e.Filter(s, permission.ActionUpdate)
	if filter.Deny {
		e.emitDenied(ctx, s, "listing:"+id, string(permission.ActionUpdate))
		return nil, ErrPermissionDenied
	}

	l, err := e.listings.Get(ctx, id, filter)
	if err != nil {
		return nil, storeError(err, ErrListingNotFound)
	}
	previous := l.Status
	agentBefore := l.AgentID

	patch.apply(l)
	if err := e.checkModeration(ctx, s, previous, l.Status); err != nil {
		return nil, err
	}
	if l.AgentID != agentBefore {
		if err := e.resolveListingAgent(ctx, s, l); err != nil {
			return nil, err
		}
	}

	if err := e.listings.Update(ctx, l, filter); err != nil {
		return nil, storeError(err, ErrListingNotFound)
	}

	e.metricInc(MetricListingUpdated)
	e.emitAudit(ctx, auditEventListingUpdated, true, actorOf(s), "listing:"+l.ID, nil, nil)
	return l, nil
}

// DeleteListing removes a listing the caller may delete.
func (e *Engine) DeleteListing(ctx context.Context, s *session.Session, id string) error {
	if e == nil || e.listings == nil {
		return ErrEngineNotReady
	}
	if s == nil {
		return ErrUnauthorized
	}

	filter := e.Filter(s, permission.ActionDelete)
	if filter.Deny {
		e.emitDenied(ctx, s, "listing:"+id, string(permission.ActionDelete))
		return ErrPermissionDenied
	}
	if err := e.listings.Delete(ctx, id, filter); err != nil {
		return storeError(err, ErrListingNotFound)
	}

	e.metricInc(MetricListingDeleted)
	e.emitAudit(ctx, auditEventListingDeleted, true, actorOf(s), "listing:"+id, nil, nil)
	return nil
}

// SetListingStatus is the moderation path: it changes any listing's status and requires the
// moderate action.
func (e *Engine) SetListingStatus(ctx context.Context, s *session.Session, id string, status store.ListingStatus) error {
	if e == nil || e.listings == nil {
		return ErrEngineNotReady
	}
	if s == nil {
		return ErrUnauthorized
	}
	if !status.Valid() {
		return invalidInput("unknown listing status")
	}

	filter := e.Filter(s, permission.ActionModerate)
	if filter.Deny {
		e.emitDenied(ctx, s, "listing:"+id, string(permission.ActionModerate))
		return ErrPermissionDenied
	}
	if err := e.listings.SetStatus(ctx, id, status, filter); err != nil {
		return storeError(err, ErrListingNotFound)
	}

	e.metricInc(MetricListingStatusChanged)
	e.emitAudit(ctx, auditEventListingStatusChange, true, actorOf(s), "listing:"+id, nil, func() map[string]string {
		return map[string]string{"status": string(status)}
	})
	return nil
}

// checkModeration reserves the archived status for moderators. Leaving it does too.
func (e *Engine) checkModeration(ctx context.Context, s *session.Session, from, to store.ListingStatus) error {
	if from != store.StatusArchived && to != store.StatusArchived {
		return nil
	}
	if from == to {
		return nil
	}
	if e.Allows(s, permission.ActionModerate) {
		return nil
	}
	e.emitDenied(ctx, s, "listing", string(permission.ActionModerate))
	return ErrPermissionDenied
}

// resolveListingAgent defaults an agent's listings to their own profile and checks that an
// explicit agent exists.
func (e *Engine) resolveListingAgent(ctx context.Context, s *session.Session, l *store.Listing) error {
	if l.AgentID == "" {
		if s.Role != session.RoleAgent {
			return nil
		}
		profile, err := e.agents.GetByUser(ctx, s.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return storeError(err, ErrAgentNotFound)
		}
		l.AgentID = profile.ID
		return nil
	}

	if _, err := e.cache.Get(ctx, l.AgentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalidInput("agent does not exist")
		}
		e.logger.Warn("agent lookup failed", zap.String("agent_id", l.AgentID), zap.Error(err))
		return storeError(err, ErrAgentNotFound)
	}
	return nil
}
