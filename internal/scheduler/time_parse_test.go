package scheduler

import (
	"testing"
	"time"
)

func TestParseNaturalTime(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"in minutes", "in 15 minutes", now.Add(15 * time.Minute), true},
		{"in hours", "in 2 hours", now.Add(2 * time.Hour), true},
		{"in days", "in 3 days", now.AddDate(0, 0, 3), true},
		{"tomorrow at hour pm", "tomorrow at 9pm", time.Date(2026, 7, 31, 21, 0, 0, 0, time.UTC), true},
		{"tomorrow at hour minute am", "tomorrow at 7:30 am", time.Date(2026, 7, 31, 7, 30, 0, 0, time.UTC), true},
		{"at clock future today", "at 11pm", time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC), true},
		{"at clock past rolls to tomorrow", "at 9am", time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC), true},
		{"unparseable", "next thursday", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNaturalTime(tt.input, now)
			if ok != tt.ok {
				t.Fatalf("ParseNaturalTime(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseNaturalTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
