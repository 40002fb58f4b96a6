// Package intentions implements the proactive-trigger subsystem referenced
// by spec.md §9 ("Bloom filters for intentions (if enabled)... process-local,
// copy-on-write") but dropped from the distilled component list: keyword,
// topic, time-elapsed, and scheduled-time triggers, tiered behind a cheap
// Bloom-filter pre-screen before falling through to full comparison. It is
// an additive capability the facade may consult on Add; it never changes a
// gate decision rule in §4.E.
package intentions

import "time"

// TriggerKind tags which condition an Intention fires on.
type TriggerKind int

const (
	KeywordMention TriggerKind = iota
	TopicDiscussed
	TimeElapsed
	ScheduledTime
)

func (k TriggerKind) String() string {
	switch k {
	case KeywordMention:
		return "keyword_mention"
	case TopicDiscussed:
		return "topic_discussed"
	case TimeElapsed:
		return "time_elapsed"
	default:
		return "scheduled_time"
	}
}

// Trigger is the condition side of an Intention. Exactly the fields its Kind
// needs are populated; the rest are zero.
type Trigger struct {
	Kind TriggerKind

	// KeywordMention / TopicDiscussed
	Keywords     []string
	TopicVector  []float32
	TopicThreshold float64

	// TimeElapsed
	Since time.Time
	After time.Duration

	// ScheduledTime
	At time.Time
}

// Intention binds a trigger condition to the memory it concerns. MemoryID is
// empty for intentions that aren't anchored to one memory (e.g. a standing
// scheduled reminder).
type Intention struct {
	ID        string
	MemoryID  string
	Label     string
	Trigger   Trigger
	CreatedAt time.Time
	LastFired time.Time
}

// Fired is one trigger evaluation that matched, returned by Checker.Check.
type Fired struct {
	Intention Intention
	Reason    string
	At        time.Time
}
