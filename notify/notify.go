// Package notify delivers collection notices to people. The log notifier is
// the only channel wired today; push and e-mail channels plug in behind the
// same collection.Notifier interface.
package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/warp/collection-engine/collection"
)

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	Log logrus.FieldLogger
}

var _ collection.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{Log: log}
}

func (n *LogNotifier) Notify(_ context.Context, notice collection.Notice) {
	entry := n.Log.WithFields(logrus.Fields{
		"agreement_id": notice.AgreementID,
		"kind":         notice.Kind,
	})
	if notice.Kind == collection.NoticeFailure {
		entry.Warn(notice.Message)
		return
	}
	entry.Info(notice.Message)
}

// Recorder keeps the most recent notices in memory, newest last, so the API
// can show them. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	notices []collection.Notice
}

var _ collection.Notifier = (*Recorder)(nil)

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 100
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(_ context.Context, notice collection.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
	if over := len(r.notices) - r.limit; over > 0 {
		r.notices = append([]collection.Notice(nil), r.notices[over:]...)
	}
}

// Recent returns a copy of the recorded notices.
func (r *Recorder) Recent() []collection.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]collection.Notice(nil), r.notices...)
}

// Fanout forwards every notice to each notifier in order.
type Fanout []collection.Notifier

func (f Fanout) Notify(ctx context.Context, notice collection.Notice) {
	for _, n := range f {
		n.Notify(ctx, notice)
	}
}
