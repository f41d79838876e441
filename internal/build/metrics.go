package build

import (
	"sync"
	"time"

	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
)

// BuildMetrics tracks sprite build outcomes for one session.
type BuildMetrics struct {
	mutex    sync.RWMutex
	snapshot MetricsSnapshot
}

// MetricsSnapshot is a copy of BuildMetrics at one point in time.
type MetricsSnapshot struct {
	TotalBuilds      int64         `json:"totalBuilds"`
	SuccessfulBuilds int64         `json:"successfulBuilds"`
	FailedBuilds     int64         `json:"failedBuilds"`
	SkippedBuilds    int64         `json:"skippedBuilds"`
	AverageDuration  time.Duration `json:"averageDuration"`
	TotalDuration    time.Duration `json:"totalDuration"`
	LastIconCount    int           `json:"lastIconCount"`
	LastBuildAt      time.Time     `json:"lastBuildAt"`
	// LastError is the error of the most recent build, cleared by the next
	// build that succeeds or is skipped.
	LastError            string `json:"lastError,omitempty"`
	LastErrorRecoverable bool   `json:"lastErrorRecoverable,omitempty"`
}

// NewBuildMetrics creates a new build metrics tracker.
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records a build result. Rebuilds skipped because the
// fingerprint did not change count as skipped, not successful.
func (bm *BuildMetrics) RecordBuild(result *BuildResult) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	m := &bm.snapshot
	m.TotalBuilds++
	m.TotalDuration += result.Duration
	m.LastBuildAt = time.Now()
	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalBuilds)

	switch {
	case result.Error != nil:
		m.FailedBuilds++
		m.LastError = result.Error.Error()
		m.LastErrorRecoverable = spriteerrors.IsRecoverable(result.Error)
		return
	case !result.Changed:
		m.SkippedBuilds++
	default:
		m.SuccessfulBuilds++
		m.LastIconCount = result.Sprite.Count()
	}
	m.LastError = ""
	m.LastErrorRecoverable = false
}

// GetSnapshot returns a copy of the current metrics.
func (bm *BuildMetrics) GetSnapshot() MetricsSnapshot {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	return bm.snapshot
}

// Reset resets all metrics.
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()
	bm.snapshot = MetricsSnapshot{}
}

// GetSuccessRate returns successful builds as a percentage of builds that
// did work.
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	worked := bm.snapshot.SuccessfulBuilds + bm.snapshot.FailedBuilds
	if worked == 0 {
		return 0.0
	}
	return float64(bm.snapshot.SuccessfulBuilds) / float64(worked) * 100.0
}
