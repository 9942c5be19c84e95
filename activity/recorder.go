package activity

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Recorder appends activity entries best-effort: a failing log store must
// never fail the operation being logged, so Record swallows errors after
// emitting a warning.
type Recorder struct {
	repo    Repo
	log     zerolog.Logger
	nowTime func() time.Time
}

// RecorderOption modifies a Recorder.
type RecorderOption func(*Recorder)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.nowTime = nowFunc
	}
}

func NewRecorder(repo Repo, log zerolog.Logger, options ...RecorderOption) *Recorder {
	r := &Recorder{
		repo:    repo,
		log:     log,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Record appends an entry, absorbing any storage failure.
func (r *Recorder) Record(ctx context.Context, action Action, email, details string) {
	if r == nil || r.repo == nil {
		return
	}
	entry := &Entry{
		Action:    action,
		Email:     email,
		Details:   details,
		CreatedAt: r.nowTime().UTC(),
	}
	if err := r.repo.Append(ctx, entry); err != nil {
		r.log.Warn().Err(err).Str("action", string(action)).Str("email", email).Msg("activity log append failed")
	}
}
