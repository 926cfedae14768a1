// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Summary reports what a run produced.
type Summary struct {
	RunID     string
	StartedAt time.Time
	MainLinks int
	Inventors int
	Authors   int
	Records   int
	Discarded int
	Pruned    int

	// Archive is the absolute archive path, empty when none was written.
	Archive      string
	ArchiveBytes int64

	Elapsed time.Duration
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Width(20).Foreground(lipgloss.Color("8"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Render formats the summary as an aligned, coloured block.
func (s Summary) Render() string {
	rows := [][2]string{
		{"run id", s.RunID},
		{"result links", fmt.Sprint(s.MainLinks)},
		{"inventor queries", fmt.Sprint(s.Inventors)},
		{"authors", fmt.Sprint(s.Authors)},
		{"records", fmt.Sprint(s.Records)},
		{"discarded", fmt.Sprint(s.Discarded)},
		{"empty dirs removed", fmt.Sprint(s.Pruned)},
		{"elapsed", s.Elapsed.Round(time.Second).String()},
	}
	if s.Archive != "" {
		rows = append(rows, [2]string{"archive", fmt.Sprintf("%s (%d MB)", s.Archive, s.ArchiveBytes/(1024*1024))})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Harvest summary"))
	b.WriteString("\n")
	for _, r := range rows {
		v := valueStyle.Render(r[1])
		if r[0] == "discarded" && s.Discarded > 0 {
			v = warnStyle.Render(r[1])
		}
		b.WriteString(labelStyle.Render(r[0]) + v + "\n")
	}
	return b.String()
}
