package store

import (
	"testing"
	"time"

	"github.com/quantora/feedcache/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMissingRanges(t *testing.T) {
	// Trading days Mon 15 .. Fri 19 (no weekend entries).
	want := []time.Time{
		day(2018, 10, 15),
		day(2018, 10, 16),
		day(2018, 10, 17),
		day(2018, 10, 18),
		day(2018, 10, 19),
	}

	tests := []struct {
		name string
		have []time.Time
		out  []model.DateRange
	}{
		{
			name: "all missing",
			have: nil,
			out:  []model.DateRange{{Start: day(2018, 10, 15), End: day(2018, 10, 19)}},
		},
		{
			name: "fully covered",
			have: want,
			out:  nil,
		},
		{
			name: "trailing gap",
			have: []time.Time{day(2018, 10, 15), day(2018, 10, 16)},
			out:  []model.DateRange{{Start: day(2018, 10, 17), End: day(2018, 10, 19)}},
		},
		{
			name: "two gaps",
			have: []time.Time{day(2018, 10, 16), day(2018, 10, 18)},
			out: []model.DateRange{
				{Start: day(2018, 10, 15), End: day(2018, 10, 15)},
				{Start: day(2018, 10, 17), End: day(2018, 10, 17)},
				{Start: day(2018, 10, 19), End: day(2018, 10, 19)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			have := make(map[time.Time]struct{}, len(tt.have))
			for _, d := range tt.have {
				have[d] = struct{}{}
			}

			got := missingRanges(want, have)
			if len(got) != len(tt.out) {
				t.Fatalf("ranges = %v, want %v", got, tt.out)
			}
			for i := range got {
				if !got[i].Start.Equal(tt.out[i].Start) || !got[i].End.Equal(tt.out[i].End) {
					t.Errorf("range[%d] = %v, want %v", i, got[i], tt.out[i])
				}
			}
		})
	}
}

func TestMissingRanges_Empty(t *testing.T) {
	if got := missingRanges(nil, nil); got != nil {
		t.Errorf("missingRanges(nil) = %v, want nil", got)
	}
}
