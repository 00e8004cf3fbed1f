package overload

import (
	"testing"
	"time"

	"github.com/kjstillabower/air-quality-advisor/internal/traffic"
)

type fakeCounter struct {
	admitted, denied int
	window           time.Duration
}

func (f *fakeCounter) AdmittedCount(window time.Duration) int {
	f.window = window
	return f.admitted
}

func (f *fakeCounter) DenialCount(window time.Duration) int {
	f.window = window
	return f.denied
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name             string
		admitted, denied int
		threshold        int
		wantPct          float64
		wantOverloaded   bool
	}{
		{"no traffic", 0, 0, 50, 0, false},
		{"no denials", 10, 0, 50, 0, false},
		{"below threshold", 6, 4, 50, 40, false},
		{"at threshold", 5, 5, 50, 50, true},
		{"all denied", 0, 3, 50, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCounter{admitted: tt.admitted, denied: tt.denied}
			got := New(c, time.Minute, tt.threshold).Check()
			if got.DenialPct != tt.wantPct || got.Overloaded != tt.wantOverloaded {
				t.Errorf("Check() = %+v, want pct %v overloaded %v", got, tt.wantPct, tt.wantOverloaded)
			}
			if got.Admitted != tt.admitted || got.Denied != tt.denied {
				t.Errorf("Check() counts = %d/%d, want %d/%d", got.Admitted, got.Denied, tt.admitted, tt.denied)
			}
			if c.window != time.Minute {
				t.Errorf("window passed = %v, want 1m", c.window)
			}
		})
	}
}

func TestCheck_Disabled(t *testing.T) {
	c := &fakeCounter{denied: 10}
	for _, d := range []*Detector{
		nil,
		New(nil, time.Minute, 50),
		New(c, 0, 50),
		New(c, time.Minute, 0),
	} {
		if got := d.Check(); got.Overloaded || got.Denied != 0 {
			t.Errorf("disabled detector reported %+v", got)
		}
	}
}

func TestCheck_WithTracker(t *testing.T) {
	tracker := traffic.NewTracker(0)
	tracker.RecordAdmitted()
	tracker.RecordDenied()
	tracker.RecordDenied()
	tracker.RecordDenied()

	got := New(tracker, time.Minute, 70).Check()
	if !got.Overloaded || got.DenialPct != 75 {
		t.Errorf("Check() = %+v, want 75%% overloaded", got)
	}
}
