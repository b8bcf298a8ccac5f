package utils

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	got := StartOfDay(time.Date(2026, 3, 14, 23, 59, 59, 999, loc))
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("StartOfDay() = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("StartOfDay() location = %v, want %v", got.Location(), loc)
	}
}

func TestSameDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	tests := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{
			name: "same local day",
			a:    time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC),
			b:    time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "utc day differs from local day",
			a:    time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC),
			b:    time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "different local days",
			a:    time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC),
			b:    time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameDay(tt.a, tt.b, loc); got != tt.want {
				t.Errorf("SameDay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDay(t *testing.T) {
	if got := FormatDay(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)); got != "2026-01-02" {
		t.Errorf("FormatDay() = %q", got)
	}
}
