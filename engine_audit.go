package estateAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/estateAuth/session"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginRateLimited    = "login_rate_limited"
	auditEventLogout              = "logout"
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterFailure     = "register_failure"
	auditEventPermissionDenied    = "permission_denied"
	auditEventListingCreated      = "listing_created"
	auditEventListingUpdated      = "listing_updated"
	auditEventListingDeleted      = "listing_deleted"
	auditEventListingStatusChange = "listing_status_change"
	auditEventAgentUpdated        = "agent_updated"
	auditEventAgentInvalidated    = "agent_cache_invalidated"
	auditEventSessionRejected     = "session_rejected"
)

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrMalformedSession   AuditErrorCode = "malformed_session"
	auditErrInvalidSession     AuditErrorCode = "invalid_session"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditActor is the caller identity attached to an event.
type auditActor struct {
	userID    string
	role      session.Role
	sessionID string
}

func actorOf(s *session.Session) auditActor {
	if s == nil {
		return auditActor{}
	}
	return auditActor{userID: s.UserID, role: s.Role, sessionID: s.SessionID}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	actor auditActor,
	resource string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    actor.userID,
		Role:      string(actor.role),
		SessionID: actor.sessionID,
		Resource:  resource,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitDenied(ctx context.Context, s *session.Session, resource, action string) {
	e.metricInc(MetricPermissionDenied)
	e.emitAudit(ctx, auditEventPermissionDenied, false, actorOf(s), resource, ErrPermissionDenied, func() map[string]string {
		return map[string]string{"action": action}
	})
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, e.now().Sub(start))
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRegistrationRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrListingNotFound),
		errors.Is(err, ErrAgentNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, session.ErrMalformedSession):
		return auditErrMalformedSession
	case errors.Is(err, session.ErrInvalidSession):
		return auditErrInvalidSession
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
