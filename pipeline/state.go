package pipeline

import (
	"PostureServer/posture"
	"sync"
	"time"
)

// PostureState is the latest published label. It starts as posture.Unknown.
type PostureState struct {
	mu      sync.Mutex
	label   posture.Label
	updated time.Time
}

func NewPostureState() *PostureState {
	return &PostureState{label: posture.Unknown}
}

func (p *PostureState) Set(label posture.Label) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
	p.updated = time.Now()
}

func (p *PostureState) Get() posture.Label {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.label
}

// Snapshot returns the label with the time it was last set. The time is zero
// while the label is still the initial Unknown.
func (p *PostureState) Snapshot() (posture.Label, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.label, p.updated
}
