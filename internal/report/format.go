package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxDomainWidth caps the domain column; longer hosts are truncated.
const maxDomainWidth = 40

// FormatDuration renders seconds as "1h 5m", "3m 20s" or "45s".
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// RenderText writes a human-readable summary with an aligned domain table.
// Column widths are measured in terminal cells so internationalized hosts
// line up.
func RenderText(w io.Writer, s *Summary) {
	title := string(s.Range)
	if s.From != s.To {
		title = fmt.Sprintf("%s (%s to %s)", s.Range, s.From, s.To)
	} else if s.To != "" {
		title = fmt.Sprintf("%s (%s)", s.Range, s.To)
	}
	fmt.Fprintf(w, "Activity for %s\n", title)
	fmt.Fprintf(w, "  Total time:  %s\n", FormatDuration(s.TotalSeconds))
	fmt.Fprintf(w, "  Visits:      %d\n", s.TotalVisits)
	fmt.Fprintf(w, "  Domains:     %d\n", s.DomainCount)

	if len(s.TopDomains) == 0 {
		fmt.Fprintln(w, "\nNo activity recorded.")
		return
	}

	width := runewidth.StringWidth("DOMAIN")
	for _, d := range s.TopDomains {
		if dw := runewidth.StringWidth(d.Domain); dw > width {
			width = dw
		}
	}
	if width > maxDomainWidth {
		width = maxDomainWidth
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %3s  %s  %10s  %6s  %6s\n", "#", runewidth.FillRight("DOMAIN", width), "TIME", "SHARE", "VISITS")
	fmt.Fprintf(w, "  %s\n", strings.Repeat("-", 3+2+width+2+10+2+6+2+6))
	for i, d := range s.TopDomains {
		name := runewidth.Truncate(d.Domain, width, "…")
		fmt.Fprintf(w, "  %3d  %s  %10s  %5.1f%%  %6d\n",
			i+1,
			runewidth.FillRight(name, width),
			FormatDuration(d.Seconds),
			share(d.Seconds, s.TotalSeconds),
			d.Visits,
		)
	}
}

func share(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
