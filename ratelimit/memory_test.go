package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(limits map[string]Limit) (*Memory, func(time.Duration)) {
	m := NewMemory(limits)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, func(d time.Duration) { now = now.Add(d) }
}

func TestAllowNamedWithinLimit(t *testing.T) {
	m, _ := newTestLimiter(map[string]Limit{"b": {Limit: 3, Window: time.Minute}})
	for i := 0; i < 3; i++ {
		ok, err := m.AllowNamed("b", "k")
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, _ := m.AllowNamed("b", "k"); ok {
		t.Fatal("fourth request should be denied")
	}
}

func TestAllowNamedWindowRollover(t *testing.T) {
	m, advance := newTestLimiter(map[string]Limit{"b": {Limit: 1, Window: time.Minute}})
	if ok, _ := m.AllowNamed("b", "k"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := m.AllowNamed("b", "k"); ok {
		t.Fatal("second request should be denied")
	}
	advance(time.Minute)
	if ok, _ := m.AllowNamed("b", "k"); !ok {
		t.Fatal("request after window should pass")
	}
}

func TestAllowNamedKeysAreIndependent(t *testing.T) {
	m, _ := newTestLimiter(map[string]Limit{"b": {Limit: 1, Window: time.Minute}})
	if ok, _ := m.AllowNamed("b", "k1"); !ok {
		t.Fatal("k1 should pass")
	}
	if ok, _ := m.AllowNamed("b", "k2"); !ok {
		t.Fatal("k2 should pass")
	}
}

func TestAllowNamedFallsBackToDefault(t *testing.T) {
	m, _ := newTestLimiter(map[string]Limit{"default": {Limit: 1, Window: time.Minute}})
	if ok, _ := m.AllowNamed("unknown", "k"); !ok {
		t.Fatal("first request should pass via default bucket")
	}
	if ok, _ := m.AllowNamed("unknown", "k"); ok {
		t.Fatal("second request should be denied via default bucket")
	}
}

func TestAllowNamedNoLimitsConfigured(t *testing.T) {
	m, _ := newTestLimiter(nil)
	for i := 0; i < 100; i++ {
		if ok, _ := m.AllowNamed("any", "k"); !ok {
			t.Fatal("unconfigured limiter must allow")
		}
	}
}
