package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the job, the phase, or the percentage bucket changes.
type ProgressSampler struct {
	bucketSize float64
	lastJob    int64
	lastPhase  string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. A negative
// percent means the total is unknown and only phase changes are reported.
func (s *ProgressSampler) ShouldLog(jobID int64, percent float64, phase string) bool {
	if s == nil {
		return true
	}
	phase = strings.TrimSpace(phase)
	emit := false
	if jobID != s.lastJob {
		s.lastJob = jobID
		s.lastPhase = ""
		s.lastBucket = -1
	}
	if phase != "" && phase != s.lastPhase {
		s.lastPhase = phase
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

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastJob = 0
	s.lastPhase = ""
	s.lastBucket = -1
}
