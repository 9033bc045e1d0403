package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilAlwaysLogs(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "upload") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)

	if !s.ShouldLog(0, "upload") {
		t.Error("first call should log")
	}
	if s.ShouldLog(9, "upload") {
		t.Error("9% should not log (same bucket)")
	}
	if !s.ShouldLog(10, "upload") {
		t.Error("10% should log (new bucket)")
	}
	if !s.ShouldLog(100, "upload") {
		t.Error("100% should log")
	}
	if s.ShouldLog(140, "upload") {
		t.Error("values over 100% share the 100% bucket")
	}
}

func TestProgressSamplerStageChangeResetsBucket(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50, "download")

	if !s.ShouldLog(0, " upload ") {
		t.Error("stage change should log")
	}
	if s.lastStage != "upload" {
		t.Errorf("lastStage = %q, want trimmed upload", s.lastStage)
	}
	if !s.ShouldLog(10, "upload") {
		t.Error("bucket should restart after stage change")
	}
}

func TestProgressSamplerBytes(t *testing.T) {
	s := NewProgressSampler(25)
	if !s.ShouldLogBytes(0, 400, "upload") {
		t.Error("first byte update should log")
	}
	if s.ShouldLogBytes(99, 400, "upload") {
		t.Error("24.75% should stay in the first bucket")
	}
	if !s.ShouldLogBytes(100, 400, "upload") {
		t.Error("25% should log")
	}
	if s.ShouldLogBytes(1000, 0, "upload") {
		t.Error("unknown totals should not advance buckets")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50, "upload")
	s.Reset()
	if s.lastStage != "" || s.lastBucket != -1 {
		t.Fatalf("unexpected state after reset: %+v", s)
	}
	if !s.ShouldLog(50, "upload") {
		t.Error("should log after reset")
	}
}
