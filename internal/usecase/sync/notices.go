package sync

import (
	"log/slog"

	"github.com/google/uuid"
)

type NoticeKind string

const (
	// NoticeSuperseded: the local optimistic state conflicted with a
	// server-confirmed outcome and was replaced. Informational only.
	NoticeSuperseded NoticeKind = "superseded"

	// NoticeRequestFailed: the server definitively rejected the action
	// (shift already taken, request already resolved).
	NoticeRequestFailed NoticeKind = "request_failed"

	// NoticePersistentFailure: transient failures exhausted the attempt
	// cap. The entry stays queued; the user may retry manually.
	NoticePersistentFailure NoticeKind = "persistent_failure"
)

type Notice struct {
	Kind      NoticeKind
	RequestID uuid.UUID
	EntryID   uuid.UUID
	Message   string
}

// Notifier receives user-facing notices from the reconciler. The UI layer
// provides its own; the default just logs.
type Notifier interface {
	Notify(n Notice)
}

type logNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (l *logNotifier) Notify(n Notice) {
	l.logger.Info("sync notice",
		"kind", string(n.Kind),
		"request_id", n.RequestID.String(),
		"entry_id", n.EntryID.String(),
		"message", n.Message,
	)
}
