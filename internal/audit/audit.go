package audit

import (
	"context"

	"github.com/weiawesome/live-relay/pkg/log"
)

// Audit actions for the relay.
const (
	ActionRegister         = "admin.register"
	ActionRegisterDenied   = "admin.register_denied"
	ActionLogin            = "admin.login"
	ActionLoginFailed      = "admin.login_failed"
	ActionWSAuth           = "relay.auth"
	ActionWSAuthFailed     = "relay.auth_failed"
	ActionForbidden        = "relay.forbidden"
	ActionStreamStart      = "relay.stream_start"
	ActionStreamStop       = "relay.stream_stop"
	ActionTitleUpdate      = "relay.title_update"
	ActionPublisherTimeout = "relay.publisher_timeout"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
