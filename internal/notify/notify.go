package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Notifier is the user-facing toast sink. Calls are fire-and-forget; a
// notifier must never block or fail.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier reports notifications through a zap logger. It is the default
// sink for headless use (CLIs, tests with -v).
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(msg string) {
	n.logger.Info("notification", zap.String("kind", "success"), zap.String("message", msg))
}

func (n *LogNotifier) Error(msg string) {
	n.logger.Warn("notification", zap.String("kind", "error"), zap.String("message", msg))
}

// Recorder captures notifications in order, for tests.
type Recorder struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (r *Recorder) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *Recorder) Successes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}
