package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/himanishpuri/AutoPianist/pkg/pianist"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/perform"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7dcfff")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// ms formats a statistic, showing sentinel values as a dash.
func ms(v int) string {
	if v == sheet.NoValue {
		return "-"
	}
	return strconv.Itoa(v)
}

func songTable(songs []pianist.Song) string {
	t := newTable("ID", "Title", "Notes", "Length (ms)", "Strikes", "Occupancy")
	for _, s := range songs {
		t.Row(s.ID, s.Title, strconv.Itoa(s.Notes), ms(s.EndMs), strconv.Itoa(s.MaxStrikes), strconv.Itoa(s.MaxOccupancy))
	}
	return t.String()
}

func statsTable(st sheet.Stats) string {
	t := newTable("Statistic", "Value")
	t.Row("Slices", strconv.Itoa(st.Slices))
	t.Row("Notes", strconv.Itoa(st.Notes))
	t.Row("Distinct keys", strconv.Itoa(st.DistinctPitches))
	if st.DistinctPitches > 0 {
		t.Row("Range", pitch.Name(st.Lowest)+" - "+pitch.Name(st.Highest))
	}
	t.Row("Quantization step (ms)", ms(st.QuantizationStep))
	t.Row("End time (ms)", ms(st.EndTime))
	t.Row("Max simultaneous strikes", strconv.Itoa(st.MaxStrikes))
	t.Row("Max simultaneous occupancy", strconv.Itoa(st.MaxOccupancy))
	return t.String()
}

func layoutTable(layout pianist.Layout) string {
	t := newTable("Finger", "Home", "Metric", "Slides")
	for _, f := range layout.Fingers {
		t.Row(strconv.Itoa(f.FingerID), pitch.Name(f.Metric), strconv.FormatFloat(float64(f.Metric), 'f', -1, 64), strconv.Itoa(f.Moves))
	}
	return t.String()
}

func framesTable(frames []perform.Frame) string {
	t := newTable("Time (ms)", "Commands")
	for _, f := range frames {
		parts := make([]string, len(f.Commands))
		for i, c := range f.Commands {
			parts[i] = fmt.Sprintf("%s %s#%d", c.Action, pitch.Name(c.Metric), c.FingerID)
		}
		t.Row(strconv.Itoa(f.TimeMs), strings.Join(parts, ", "))
	}
	return t.String()
}

func printSchedule(sched *pianist.Schedule, frames int) {
	perf := sched.Performance

	fmt.Printf("\n🖐  %s mode, %d finger(s)\n\n", sched.Hand.Mode, len(sched.Layout.Fingers))
	summary := newTable("Played", "Missed", "Slides", "Peak engaged", "Frames")
	summary.Row(strconv.Itoa(perf.Strikes), strconv.Itoa(len(perf.Failures)), strconv.Itoa(len(perf.Moves)),
		strconv.Itoa(perf.PeakEngaged), strconv.Itoa(len(perf.Frames)))
	fmt.Println(summary.String())

	if n := len(perf.Failures); n > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("\n⚠️  %d note(s) could not be played:", n)))
		limit := min(n, 10)
		for _, f := range perf.Failures[:limit] {
			fmt.Println(dimStyle.Render(f.Error()))
		}
		if n > limit {
			fmt.Println(dimStyle.Render(fmt.Sprintf("... and %d more", n-limit)))
		}
	}

	if frames > 0 && len(perf.Frames) > 0 {
		fmt.Println()
		fmt.Println(framesTable(perf.Frames[:min(frames, len(perf.Frames))]))
	}
}
