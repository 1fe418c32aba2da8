package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/scoring"
)

const (
	goodScore = 75
	fairScore = 50
)

// renderer styles terminal output; colours drop out when w is not a TTY
type renderer struct {
	w     io.Writer
	title lipgloss.Style
	label lipgloss.Style
	muted lipgloss.Style
	good  lipgloss.Style
	fair  lipgloss.Style
	poor  lipgloss.Style
}

func newRenderer(w io.Writer) renderer {
	r := lipgloss.NewRenderer(w)
	return renderer{
		w:     w,
		title: r.NewStyle().Bold(true),
		label: r.NewStyle().Width(22),
		muted: r.NewStyle().Faint(true),
		good:  r.NewStyle().Foreground(lipgloss.Color("2")),
		fair:  r.NewStyle().Foreground(lipgloss.Color("3")),
		poor:  r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (r renderer) score(v int) string {
	s := fmt.Sprintf("%3d", v)
	switch {
	case v >= goodScore:
		return r.good.Render(s)
	case v >= fairScore:
		return r.fair.Render(s)
	default:
		return r.poor.Render(s)
	}
}

func (r renderer) report(name string, report scoring.Report) {
	fmt.Fprintln(r.w, r.title.Render(name))
	fmt.Fprintf(r.w, "%s%s/100\n", r.label.Render("Overall"), r.score(report.Overall))
	for _, c := range report.Breakdown {
		fmt.Fprintf(r.w, "  %s%s\n", r.label.Render(c.Name), r.score(c.Score))
	}
	if report.Feedback != "" {
		fmt.Fprintln(r.w, r.muted.Render(report.Feedback))
	}
}

func (r renderer) platforms(profiles []platform.Profile) {
	for _, p := range profiles {
		limit := "unlimited"
		if p.HasLimit() {
			limit = fmt.Sprintf("%d chars", p.MaxLength)
		}
		fmt.Fprintf(r.w, "%s %s\n", r.title.Render(p.Name), r.muted.Render("("+string(p.ID)+")"))
		fmt.Fprintf(r.w, "  %s%s\n", r.label.Render("Kind"), p.Kind)
		fmt.Fprintf(r.w, "  %s%s\n", r.label.Render("Days"), weekdays(p.GoodWeekdays))
		fmt.Fprintf(r.w, "  %s%s\n", r.label.Render("Hours"), hours(p.GoodHours))
		fmt.Fprintf(r.w, "  %s%s\n", r.label.Render("Length"), limit)
		fmt.Fprintf(r.w, "  %s%s\n", r.label.Render("Criteria"), strings.Join(p.Criteria, ", "))
	}
}

func (r renderer) entries(entries []scheduler.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(r.w, r.muted.Render("No free slots in the horizon"))
		return
	}
	for _, e := range entries {
		fmt.Fprintf(r.w, "%s  %s %s  %s\n",
			e.ScheduledAt.Format("Mon 2006-01-02 15:04"),
			r.label.Render(string(e.Platform)),
			r.score(e.Score.Overall),
			e.Title)
	}
	fmt.Fprintln(r.w, r.muted.Render(fmt.Sprintf("%d entries", len(entries))))
}

func (r renderer) windows(windows []scheduler.Window) {
	for _, w := range windows {
		names := make([]string, 0, len(w.EligiblePlatforms))
		for _, p := range w.EligiblePlatforms {
			names = append(names, string(p.ID))
		}
		list := r.muted.Render("none")
		if len(names) > 0 {
			list = strings.Join(names, ", ")
		}
		fmt.Fprintf(r.w, "%s %s\n", r.label.Render(w.Date.Format("Monday 2006-01-02")), list)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func weekdays(days []time.Weekday) string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()[:3]
	}
	return strings.Join(out, " ")
}

func hours(hs []int) string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = fmt.Sprintf("%02d:00", h)
	}
	return strings.Join(out, " ")
}
