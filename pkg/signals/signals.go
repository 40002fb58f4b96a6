// Package signals implements the Strength-Signal Processor (spec §4.F):
// exogenous events that mutate dual strength and enqueue an AccessRecord,
// deduplicated by (memory_id, signal_id) across retries.
package signals

import (
	"context"
	"sync"
	"time"

	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
	"github.com/rookmem/rook/pkg/scheduler"
)

// Kind enumerates the exogenous signal types.
type Kind int

const (
	UsedInResponse Kind = iota
	IgnoredInResponse
	ExplicitCorrection
	ExplicitReinforcement
	UserFeedbackPositive
	UserFeedbackNegative
)

// Signal is one exogenous event to apply to a memory.
type Signal struct {
	MemoryID string
	SignalID string
	Kind     Kind
}

// Applier mutates a Memory's fields per the signal table and returns the
// AccessKind the caller should record.
type Applier interface {
	// Apply is expected to be called under the memory's per-id lock by the
	// facade; it mutates m in place.
	Apply(ctx context.Context, m *rmodel.Memory, now time.Time) (rmodel.AccessKind, error)
}

// Processor applies signals with idempotence across retries.
type Processor struct {
	scheduler *scheduler.Scheduler
	clock     func() time.Time

	mu   sync.Mutex
	seen map[string]struct{} // key: memory_id + "\x1f" + signal_id
}

// New builds a Processor. clock defaults to time.Now if nil.
func New(s *scheduler.Scheduler, clock func() time.Time) *Processor {
	if clock == nil {
		clock = time.Now
	}
	return &Processor{scheduler: s, clock: clock, seen: map[string]struct{}{}}
}

func dedupeKey(sig Signal) string {
	return sig.MemoryID + "\x1f" + sig.SignalID
}

// Seen reports whether sig.SignalID has already been applied to
// sig.MemoryID, for idempotent retry handling.
func (p *Processor) Seen(sig Signal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[dedupeKey(sig)]
	return ok
}

func (p *Processor) markSeen(sig Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[dedupeKey(sig)] = struct{}{}
}

// Apply mutates m per the signal table in §4.F. If sig has already been
// applied to m.ID, Apply is a no-op and returns (false, nil). The caller
// (the facade) is responsible for persisting m and the resulting
// AccessRecord within the same transaction.
func (p *Processor) Apply(ctx context.Context, m *rmodel.Memory, sig Signal) (applied bool, kind rmodel.AccessKind, err error) {
	if sig.MemoryID != m.ID {
		return false, 0, rerr.New("apply_signal", rerr.Parse, "signal memory_id does not match target memory")
	}
	if p.Seen(sig) {
		return false, 0, nil
	}

	now := p.clock()
	switch sig.Kind {
	case UsedInResponse:
		m.Counters.UsedCount++
		p.review(m, now, scheduler.Good)
		kind = rmodel.Reinforcement
	case IgnoredInResponse:
		m.Strength.Stability = max(0.1, m.Strength.Stability*0.95)
		kind = rmodel.Reinforcement
	case ExplicitCorrection:
		p.review(m, now, scheduler.Again)
		kind = rmodel.Correction
	case ExplicitReinforcement:
		p.review(m, now, scheduler.Easy)
		m.SynapticTagStrength = 1.0
		m.TagCreatedAt = now
		kind = rmodel.Reinforcement
	case UserFeedbackPositive:
		p.review(m, now, scheduler.Good)
		kind = rmodel.Reinforcement
	case UserFeedbackNegative:
		p.review(m, now, scheduler.Hard)
		kind = rmodel.Correction
	default:
		return false, 0, rerr.New("apply_signal", rerr.Parse, "unknown signal kind")
	}

	m.UpdatedAt = now
	p.markSeen(sig)
	return true, kind, nil
}

func (p *Processor) review(m *rmodel.Memory, now time.Time, g scheduler.Grade) {
	last := m.LastAccessedAt
	if last.IsZero() {
		last = m.CreatedAt
	}
	tDays := now.Sub(last).Hours() / 24
	if tDays < 0 {
		tDays = 0
	}
	updated, lapse := p.scheduler.Review(m.Strength, tDays, g)
	m.Strength = updated
	if lapse {
		m.Counters.LapseCount++
	} else {
		m.Counters.ReviewCount++
	}
	m.LastAccessedAt = now
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
