// Package notification delivers batch approval outcomes to the user: to the
// log, and to subscribed browsers over web push.
package notification

import (
	"context"

	applog "requisition-sync/pkg/logger"
)

// Level of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a single user-facing message.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier shows success and error notices to the user.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	log *applog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *applog.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notify")}
}

func (n *LogNotifier) Success(ctx context.Context, message string) {
	n.log.Infow(message, "level", LevelSuccess)
}

func (n *LogNotifier) Error(ctx context.Context, message string) {
	n.log.Warnw(message, "level", LevelError)
}

// Multi fans notices out to several notifiers.
type Multi []Notifier

func (m Multi) Success(ctx context.Context, message string) {
	for _, n := range m {
		n.Success(ctx, message)
	}
}

func (m Multi) Error(ctx context.Context, message string) {
	for _, n := range m {
		n.Error(ctx, message)
	}
}
