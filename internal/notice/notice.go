// Package notice carries transient, dismissible operator notices
// (the admin panel shows them as toasts).
package notice

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the notice severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is one message for the operator of a panel session.
type Notice struct {
	SessionID string    `json:"session_id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Notifier delivers notices. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Success is a helper for the common success notice.
func Success(ctx context.Context, to Notifier, sessionID, msg string) {
	to.Notify(ctx, Notice{SessionID: sessionID, Level: LevelSuccess, Message: msg, At: time.Now()})
}

// Error is a helper for the common error notice.
func Error(ctx context.Context, to Notifier, sessionID, msg string) {
	to.Notify(ctx, Notice{SessionID: sessionID, Level: LevelError, Message: msg, At: time.Now()})
}

// Info is a helper for informational notices.
func Info(ctx context.Context, to Notifier, sessionID, msg string) {
	to.Notify(ctx, Notice{SessionID: sessionID, Level: LevelInfo, Message: msg, At: time.Now()})
}

// Log writes notices to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Notify implements Notifier.
func (l *Log) Notify(_ context.Context, n Notice) {
	l.logger.Info("notice",
		zap.String("session_id", n.SessionID),
		zap.String("level", string(n.Level)),
		zap.String("message", n.Message),
	)
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, to := range m {
		if to != nil {
			to.Notify(ctx, n)
		}
	}
}

// Recorder keeps notices in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// All returns a copy of the recorded notices.
func (r *Recorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns how many recorded notices have the given level and message.
func (r *Recorder) Count(level Level, msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Level == level && x.Message == msg {
			n++
		}
	}
	return n
}
