// Package history loads the submission history shown next to an exercise.
package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/chatsql/internal/api"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

// Source lists past submissions for an exercise
type Source interface {
	Submissions(ctx context.Context, id int64) ([]domain.Submission, error)
}

// Result is what the panel shows: the submissions, or a message explaining
// why there are none
type Result struct {
	ExerciseID  int64
	Submissions []domain.Submission
	Message     string
}

// Failed reports whether the load failed
func (r Result) Failed() bool {
	return r.Message != ""
}

// Panel fetches history. Only the latest request per panel is kept.
type Panel struct {
	source Source
	logger *slog.Logger

	mu     sync.Mutex
	gen    uint64
	result Result
}

// New creates a history panel
func New(source Source, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{source: source, logger: logger}
}

// Load fetches the history of exercise id. A missing session is reported
// as a prompt to log in; any other failure as a generic message.
func (p *Panel) Load(ctx context.Context, id int64) Result {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	subs, err := p.source.Submissions(ctx, id)

	res := Result{ExerciseID: id, Submissions: []domain.Submission{}}
	switch {
	case err == nil:
		if subs != nil {
			res.Submissions = subs
		}
	case errors.Is(err, api.ErrUnauthorized):
		p.logger.Info("submission history requires login", "exercise_id", id)
		res.Message = i18n.T(ctx, i18n.MsgHistoryLoginRequired)
	default:
		p.logger.Warn("load submission history failed", "exercise_id", id, "error", err)
		res.Message = i18n.T(ctx, i18n.MsgHistoryLoadFailed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.gen {
		p.result = res
	}
	return res
}

// Clear forgets the shown history, as when the panel is hidden
func (p *Panel) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.result = Result{}
}

// Current returns the result of the latest completed load
func (p *Panel) Current() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}
