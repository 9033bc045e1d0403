package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when stages or percentage buckets change.
type ProgressSampler struct {
	bucketSize float64
	lastStage  string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or when the stage changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate "unknown"; stage is trimmed before comparison.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	stage = strings.TrimSpace(stage)
	emit := false
	if stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		bucket := int(percent / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// ShouldLogBytes is ShouldLog for byte counters. An unknown total (<= 0)
// reports an unknown percentage.
func (s *ProgressSampler) ShouldLogBytes(done, total int64, stage string) bool {
	if total <= 0 {
		return s.ShouldLog(-1, stage)
	}
	return s.ShouldLog(float64(done)*100/float64(total), stage)
}

// Reset clears the sampler state (e.g. when a new upload starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
}
