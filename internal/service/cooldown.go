package service

import (
	"sync"
	"time"

	"defect-service/internal/model"
)

// CooldownGate debounces event emission per defect class. A live feed
// reports the same defect on every frame it stays visible; without the gate
// one pothole would persist hundreds of rows.
//
// The gate is purely time-based: it does not consider bounding-box position
// or location proximity, so two physically distinct defects of the same
// class inside one window are suppressed together. Known approximation.
type CooldownGate struct {
	mu           sync.Mutex
	interval     time.Duration
	lastEmission map[model.DefectClass]time.Time
}

func NewCooldownGate(interval time.Duration) *CooldownGate {
	return &CooldownGate{
		interval:     interval,
		lastEmission: make(map[model.DefectClass]time.Time),
	}
}

// Admit reports whether an event of class may be emitted at now, and if so
// records the emission. The check-then-set is atomic so two concurrent
// frames cannot both pass inside one window. A class never seen before is
// always admitted.
func (g *CooldownGate) Admit(class model.DefectClass, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.lastEmission[class]
	if seen && now.Sub(last) < g.interval {
		return false
	}
	g.lastEmission[class] = now
	return true
}

// Reset clears all emission history, readmitting every class immediately.
func (g *CooldownGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastEmission = make(map[model.DefectClass]time.Time)
}
