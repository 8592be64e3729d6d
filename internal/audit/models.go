package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"facecards/pkg/requestcontext"
)

// Action names what happened. Values are stable; consumers key on them.
type Action string

const (
	ActionPreviewIssued     Action = "refresh.preview_issued"
	ActionRefreshApplied    Action = "refresh.applied"
	ActionLeaderCreated     Action = "roster.leader_created"
	ActionLeaderUpdated     Action = "roster.leader_updated"
	ActionLeaderDeactivated Action = "roster.leader_deactivated"
	ActionLeaderHandover    Action = "roster.handover"
	ActionLeadersVerified   Action = "roster.verified"
	ActionAdminLogin        Action = "admin.login"
	ActionAdminLoginFailed  Action = "admin.login_failed"
	ActionAdminLogout       Action = "admin.logout"
)

// Event is one audit record. Keep it transport-agnostic so stores and the
// outbox relay can fan out without knowing the caller.
type Event struct {
	ID        string
	Action    Action
	Subject   string
	ActorID   string
	RequestID string
	Details   map[string]string
	Timestamp time.Time
}

// Stamp fills request-scoped fields the caller left empty.
func Stamp(ctx context.Context, e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	if e.ActorID == "" {
		e.ActorID = requestcontext.Admin(ctx)
	}
	return e
}

// Store appends events. Implementations honour a transaction carried in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}
