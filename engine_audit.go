package goAuthClient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventSessionRestored  = "session_restored"
	auditEventSessionDiscarded = "session_discarded"
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventRegisterSuccess  = "register_success"
	auditEventRegisterFailure  = "register_failure"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshFailure   = "refresh_failure"
	auditEventRefreshDiscarded = "refresh_discarded"
	auditEventSessionExpired   = "session_expired"
	auditEventLogout           = "logout"
	auditEventStoreFailure     = "store_failure"
)

// AuditErrorCode is the stable error classification carried by
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrValidation          AuditErrorCode = "validation_rejected"
	auditErrNetwork             AuditErrorCode = "network_failure"
	auditErrUnauthorized        AuditErrorCode = "unauthorized"
	auditErrSessionExpired      AuditErrorCode = "session_expired"
	auditErrSessionEnded        AuditErrorCode = "session_ended"
	auditErrStoreUnavailable    AuditErrorCode = "store_unavailable"
	auditErrSessionCorrupt      AuditErrorCode = "session_corrupt"
	auditErrCredentialsRequired AuditErrorCode = "credentials_required"
	auditErrMalformedResponse   AuditErrorCode = "malformed_response"
	auditErrCanceled            AuditErrorCode = "canceled"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	from, to State,
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
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		EventType: eventType,
		ClientID:  e.clientID,
		Username:  username,
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if from != to {
		event.FromState = from.String()
		event.ToState = to.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrNetwork):
		return auditErrNetwork
	case errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrRefreshRejected):
		return auditErrSessionExpired
	case errors.Is(err, ErrSessionEnded):
		return auditErrSessionEnded
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotAuthenticated):
		return auditErrUnauthorized
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrSessionCorrupt):
		return auditErrSessionCorrupt
	case errors.Is(err, ErrCredentialsRequired):
		return auditErrCredentialsRequired
	case errors.Is(err, ErrMalformedResponse):
		return auditErrMalformedResponse
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}
