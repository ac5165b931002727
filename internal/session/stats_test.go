package session

import (
	"testing"

	"pitchlog/internal/actions"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	known := actions.KnownStats
	zeros := func() map[string]int {
		m := make(map[string]int, len(known))
		for _, a := range known {
			m[a] = 0
		}
		return m
	}

	tests := []struct {
		name    string
		touches []Touch
		want    func() Stats
	}{
		{
			name: "no touches",
			want: func() Stats {
				return Stats{ByAction: zeros()}
			},
		},
		{
			name: "mixed qualities",
			touches: []Touch{
				{ActionType: "Pass", Quality: Positive},
				{ActionType: "Pass", Quality: Negative},
				{ActionType: "Goal", Quality: Positive},
			},
			want: func() Stats {
				by := zeros()
				by["Pass"], by["Goal"] = 2, 1
				return Stats{Total: 3, Good: 2, Bad: 1, ByAction: by}
			},
		},
		{
			name: "unknown action is counted",
			touches: []Touch{
				{ActionType: "Throw In", Quality: Negative},
			},
			want: func() Stats {
				by := zeros()
				by["Throw In"] = 1
				return Stats{Total: 1, Bad: 1, ByAction: by}
			},
		},
		{
			name: "unrecognised quality counts toward total only",
			touches: []Touch{
				{ActionType: "Shot", Quality: "Neutral"},
			},
			want: func() Stats {
				by := zeros()
				by["Shot"] = 1
				return Stats{Total: 1, ByAction: by}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeStats(tc.touches, known)
			want := tc.want()
			if diff := cmp.Diff(want.ByAction, got.ByAction); diff != "" {
				t.Errorf("ByAction mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, want.Total, got.Total)
			assert.Equal(t, want.Good, got.Good)
			assert.Equal(t, want.Bad, got.Bad)
			assert.Equal(t, got.Total, got.Good+got.Bad+countOther(tc.touches))
		})
	}
}

func countOther(touches []Touch) int {
	n := 0
	for _, t := range touches {
		if t.Quality != Positive && t.Quality != Negative {
			n++
		}
	}
	return n
}

func TestComputeStatsActionOrder(t *testing.T) {
	got := ComputeStats([]Touch{
		{ActionType: "Volley", Quality: Positive},
		{ActionType: "Bicycle Kick", Quality: Positive},
		{ActionType: "Pass", Quality: Positive},
	}, []string{"Pass", "Goal", "Pass"})

	assert.Equal(t, []string{"Pass", "Goal", "Bicycle Kick", "Volley"}, got.Actions)
}
