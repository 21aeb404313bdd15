package sheet

import "github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"

// Stats gathers the read-only queries a report needs.
type Stats struct {
	QuantizationStep int          `json:"quantization_step"`
	EndTime          int          `json:"end_time"`
	MaxStrikes       int          `json:"max_strikes"`
	MaxOccupancy     int          `json:"max_occupancy"`
	Slices           int          `json:"slices"`
	Notes            int          `json:"notes"`
	DistinctPitches  int          `json:"distinct_pitches"`
	Lowest           pitch.Metric `json:"lowest"`
	Highest          pitch.Metric `json:"highest"`
}

// Analyze computes every statistic of t in one call.
func Analyze(t *Timeline) Stats {
	st := Stats{
		QuantizationStep: t.QuantizationStep(),
		EndTime:          t.EndTime(),
		MaxStrikes:       MaxSimultaneousStrikes(t),
		MaxOccupancy:     MaxSimultaneousOccupancy(t),
		Slices:           t.Len(),
		Notes:            t.NoteCount(),
	}
	if pitches := t.Pitches(); len(pitches) > 0 {
		st.DistinctPitches = len(pitches)
		st.Lowest = pitches[0]
		st.Highest = pitches[len(pitches)-1]
	}
	return st
}

// MaxSimultaneousStrikes is the largest number of notes struck by one slice.
func MaxSimultaneousStrikes(t *Timeline) int {
	most := 0
	for _, s := range t.slices {
		if len(s.notes) > most {
			most = len(s.notes)
		}
	}
	return most
}

// MaxSimultaneousOccupancy replays the song at the quantization step and
// returns the largest number of notes sounding at one tick. A note re-struck
// while still held counts once.
func MaxSimultaneousOccupancy(t *Timeline) int {
	if len(t.slices) == 0 {
		return 0
	}
	step := t.QuantizationStep()

	// live maps each sounding pitch to its remaining milliseconds.
	live := make(map[pitch.Metric]int)
	most := 0
	next := 0
	now := t.slices[0].startMs

	for tick := 0; next < len(t.slices) || len(live) > 0; tick++ {
		if tick > 0 {
			if step <= 0 {
				break
			}
			for m, remaining := range live {
				if remaining -= step; remaining > 0 {
					live[m] = remaining
				} else {
					delete(live, m)
				}
			}
		}
		for next < len(t.slices) && t.slices[next].startMs == now {
			for _, n := range t.slices[next].notes {
				live[n.metric] = n.durationMs
			}
			next++
		}
		if len(live) > most {
			most = len(live)
		}
		now += step
	}
	return most
}
