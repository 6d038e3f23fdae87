package estateAuth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MrEthical07/estateAuth/permission"
	"github.com/MrEthical07/estateAuth/session"
	"github.com/MrEthical07/estateAuth/store"
)

// ListAgents returns the public agent directory ordered by name. It reads the database
// directly; only single-profile lookups go through the cache.
func (e *Engine) ListAgents(ctx context.Context, limit, offset int) ([]*store.Agent, error) {
	if e == nil || e.agents == nil {
		return nil, ErrEngineNotReady
	}
	agents, err := e.agents.List(ctx, limit, offset)
	if err != nil {
		return nil, storeError(err, ErrAgentNotFound)
	}
	return agents, nil
}

// GetAgent returns one directory profile through the cache.
func (e *Engine) GetAgent(ctx context.Context, id string) (*store.Agent, error) {
	if e == nil || e.cache == nil {
		return nil, ErrEngineNotReady
	}
	if id == "" {
		return nil, ErrAgentNotFound
	}
	a, err := e.cache.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, ErrAgentNotFound)
	}
	return a, nil
}

// UpdateAgent edits a profile. Agents may edit their own; admins may edit any. The cached
// copy is invalidated here and on peers.
func (e *Engine) UpdateAgent(ctx context.Context, s *session.Session, id string, patch AgentPatch) (*store.Agent, error) {
	if e == nil || e.agents == nil {
		return nil, ErrEngineNotReady
	}
	if s == nil {
		return nil, ErrUnauthorized
	}

	filter := e.Filter(s, permission.ActionUpdate)
	if filter.Deny {
		e.emitDenied(ctx, s, "agent:"+id, string(permission.ActionUpdate))
		return nil, ErrPermissionDenied
	}

	a, err := e.agents.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, ErrAgentNotFound)
	}
	if !filter.Matches(a.Fields()) {
		e.emitDenied(ctx, s, "agent:"+id, string(permission.ActionUpdate))
		return nil, ErrPermissionDenied
	}

	patch.apply(a)
	if err := e.agents.Update(ctx, a); err != nil {
		return nil, storeError(err, ErrAgentNotFound)
	}

	e.invalidateAgent(ctx, id)
	e.metricInc(MetricAgentUpdated)
	e.emitAudit(ctx, auditEventAgentUpdated, true, actorOf(s), "agent:"+id, nil, nil)
	return a, nil
}

// InvalidateAgent evicts a profile from every process's cache. An empty id purges the whole
// cache. Requires the moderate action.
func (e *Engine) InvalidateAgent(ctx context.Context, s *session.Session, id string) error {
	if e == nil || e.cache == nil {
		return ErrEngineNotReady
	}
	if s == nil {
		return ErrUnauthorized
	}
	if !e.Allows(s, permission.ActionModerate) {
		e.emitDenied(ctx, s, "agent:"+id, string(permission.ActionModerate))
		return ErrPermissionDenied
	}

	var err error
	if id == "" {
		err = e.cache.Purge(ctx)
	} else {
		err = e.cache.Invalidate(ctx, id)
	}
	if err != nil {
		e.logger.Warn("agent invalidation not published", zap.String("agent_id", id), zap.Error(err))
	}

	e.emitAudit(ctx, auditEventAgentInvalidated, true, actorOf(s), "agent:"+id, nil, nil)
	return nil
}

// invalidateAgent drops id after a write. A publish failure leaves peers serving the old
// profile until their TTL runs out, so it is logged rather than returned.
func (e *Engine) invalidateAgent(ctx context.Context, id string) {
	if err := e.cache.Invalidate(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("agent invalidation not published", zap.String("agent_id", id), zap.Error(err))
	}
}
