package signals

import (
	"context"
	"testing"
	"time"

	"github.com/rookmem/rook/pkg/rmodel"
	"github.com/rookmem/rook/pkg/scheduler"
)

func newMemory() *rmodel.Memory {
	now := time.Now().Add(-2 * 24 * time.Hour)
	return &rmodel.Memory{
		ID:        "m1",
		CreatedAt: now,
		UpdatedAt: now,
		Strength:  rmodel.Strength{Stability: 1.0, Difficulty: 5.0},
	}
}

func TestSignalIdempotence(t *testing.T) {
	p := New(scheduler.New(), nil)
	m := newMemory()
	sig := Signal{MemoryID: "m1", SignalID: "s1", Kind: UsedInResponse}

	applied1, _, err := p.Apply(context.Background(), m, sig)
	if err != nil || !applied1 {
		t.Fatalf("first apply: applied=%v err=%v", applied1, err)
	}
	if m.Counters.UsedCount != 1 {
		t.Fatalf("used_count = %d, want 1", m.Counters.UsedCount)
	}

	applied2, _, err := p.Apply(context.Background(), m, sig)
	if err != nil {
		t.Fatal(err)
	}
	if applied2 {
		t.Fatal("expected second apply of same signal_id to be a no-op")
	}
	if m.Counters.UsedCount != 1 {
		t.Fatalf("used_count = %d after retry, want unchanged 1", m.Counters.UsedCount)
	}
}

func TestIgnoredInResponseDecaysStability(t *testing.T) {
	p := New(scheduler.New(), nil)
	m := newMemory()
	_, _, err := p.Apply(context.Background(), m, Signal{MemoryID: "m1", SignalID: "s1", Kind: IgnoredInResponse})
	if err != nil {
		t.Fatal(err)
	}
	if m.Strength.Stability != 0.95 {
		t.Fatalf("stability = %v, want 0.95", m.Strength.Stability)
	}
}

func TestExplicitReinforcementSetsTag(t *testing.T) {
	p := New(scheduler.New(), nil)
	m := newMemory()
	_, kind, err := p.Apply(context.Background(), m, Signal{MemoryID: "m1", SignalID: "s1", Kind: ExplicitReinforcement})
	if err != nil {
		t.Fatal(err)
	}
	if m.SynapticTagStrength != 1.0 {
		t.Fatalf("tag_strength = %v, want 1.0", m.SynapticTagStrength)
	}
	if kind != rmodel.Reinforcement {
		t.Fatalf("access kind = %v, want Reinforcement", kind)
	}
}

func TestExplicitCorrectionIsLapse(t *testing.T) {
	p := New(scheduler.New(), nil)
	m := newMemory()
	_, kind, err := p.Apply(context.Background(), m, Signal{MemoryID: "m1", SignalID: "s1", Kind: ExplicitCorrection})
	if err != nil {
		t.Fatal(err)
	}
	if m.Counters.LapseCount != 1 {
		t.Fatalf("lapse_count = %d, want 1", m.Counters.LapseCount)
	}
	if kind != rmodel.Correction {
		t.Fatalf("access kind = %v, want Correction", kind)
	}
}
