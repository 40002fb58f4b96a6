package intentions

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/rookmem/rook/pkg/capability"
)

// Checker holds the registered Intentions for one scope and evaluates them
// cheaply against incoming text, tiering keyword checks behind a Bloom
// filter (INT-06) before topic checks fall through to embedding comparison
// (INT-07, at a caller-chosen cadence -- this package does not itself
// schedule that cadence, since the facade already owns the Add call site
// that would drive it).
type Checker struct {
	mu         sync.RWMutex
	intentions map[string]Intention
	bloom      *KeywordBloomFilter
	embed      capability.Embed
	clock      capability.Clock
}

// New builds a Checker. embed may be nil, in which case TopicDiscussed
// triggers never fire (they degrade to "never matched" rather than erroring,
// since topic matching is a best-effort enrichment).
func New(embed capability.Embed, clock capability.Clock) *Checker {
	return &Checker{
		intentions: make(map[string]Intention),
		bloom:      NewKeywordBloomFilter(64),
		embed:      embed,
		clock:      clock,
	}
}

// Register adds or replaces an Intention, indexing its keywords (if any)
// into the Bloom filter. Registration is copy-on-write with respect to the
// previous snapshot: concurrent Check calls never observe a partially
// registered intention.
func (c *Checker) Register(in Intention) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intentions[in.ID] = in
	if in.Trigger.Kind == KeywordMention {
		next := &KeywordBloomFilter{bits: append([]uint64(nil), c.bloom.bits...), k: c.bloom.k}
		for _, kw := range in.Trigger.Keywords {
			next.Add(kw)
		}
		c.bloom = next
	}
}

// Remove drops an Intention by id.
func (c *Checker) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.intentions, id)
}

// Check evaluates every registered Intention against message (and, for
// TopicDiscussed, its embedding) and the current time, returning every
// match. It never mutates gate decisions; callers are free to ignore the
// result entirely.
func (c *Checker) Check(ctx context.Context, message string) ([]Fired, error) {
	c.mu.RLock()
	snapshot := make([]Intention, 0, len(c.intentions))
	for _, in := range c.intentions {
		snapshot = append(snapshot, in)
	}
	bloomHit := c.bloom.AnyMightContain(message)
	mightContain := c.bloom.MightContain
	c.mu.RUnlock()

	now := c.clock.Now()
	var fired []Fired

	var messageVec []float32
	var messageVecErr error
	haveVec := false

	for _, in := range snapshot {
		switch in.Trigger.Kind {
		case KeywordMention:
			if !bloomHit {
				continue
			}
			if kw, ok := matchesKeyword(message, in.Trigger.Keywords, mightContain); ok {
				fired = append(fired, Fired{Intention: in, Reason: "keyword: " + kw, At: now})
			}

		case TopicDiscussed:
			if c.embed == nil || len(in.Trigger.TopicVector) == 0 {
				continue
			}
			if !haveVec {
				messageVec, messageVecErr = c.embed.EmbedText(ctx, message, capability.EmbedSearch)
				haveVec = true
			}
			if messageVecErr != nil {
				continue
			}
			if cosine(messageVec, in.Trigger.TopicVector) >= in.Trigger.TopicThreshold {
				fired = append(fired, Fired{Intention: in, Reason: "topic_similarity", At: now})
			}

		case TimeElapsed:
			if !in.Trigger.Since.IsZero() && now.Sub(in.Trigger.Since) >= in.Trigger.After {
				fired = append(fired, Fired{Intention: in, Reason: "time_elapsed", At: now})
			}

		case ScheduledTime:
			if !in.Trigger.At.IsZero() && !now.Before(in.Trigger.At) && in.LastFired.Before(in.Trigger.At) {
				fired = append(fired, Fired{Intention: in, Reason: "scheduled_time", At: now})
			}
		}
	}
	return fired, nil
}

func matchesKeyword(message string, keywords []string, mightContain func(string) bool) (string, bool) {
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if !mightContain(kw) {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
