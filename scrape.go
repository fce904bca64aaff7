package metrics

import (
	"sort"
	"strconv"
	"strings"
)

// ScrapeContentType is the content type an embedder's HTTP handler should set
// when serving HandleScrape's body (hosting that handler is out of scope for
// this library).
const ScrapeContentType = "text/plain; version=0.0.4"

// HandleScrape renders registry to the scrape-compatible text format defined
// and returns the body alongside the content type an embedder's
// HTTP handler should set.
func HandleScrape(registry *Registry) (body string, contentType string) {
	return renderScrape(registry), ScrapeContentType
}

// renderScrape walks registry in ascending metric-name order, emitting a
// "# TYPE" line followed by one value line per cell (ascending by the
// formatted label clause), followed by a blank line, for every metric.
func renderScrape(registry *Registry) string {
	var b strings.Builder
	for _, name := range registry.names() {
		m, ok := registry.metric(name)
		if !ok {
			continue
		}
		b.WriteString("# TYPE ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(m.Kind().String())
		b.WriteByte('\n')

		cells := m.getCells()
		type line struct {
			clause string
			value  float64
		}
		lines := make([]line, 0, len(cells))
		for _, c := range cells {
			lines = append(lines, line{clause: c.Labels().scrapeClause(), value: c.Value()})
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i].clause < lines[j].clause })

		for _, l := range lines {
			b.WriteString(name)
			b.WriteString(l.clause)
			b.WriteByte(' ')
			b.WriteString(formatScrapeValue(l.value))
			b.WriteByte('\n')
		}

		b.WriteByte('\n')
	}
	return b.String()
}

// formatScrapeValue renders a float64 with a decimal point, matching the
// platform's default float-to-text convention (e.g.
// "1.0", "2.5").
func formatScrapeValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
