// Package report prints compilation results: diagnostics, then an aligned
// asset table, and decides whether the run has failed.
package report

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
)

// Decision is the outcome of reporting one compilation.
type Decision struct {
	// Failed is set when the run must end with a non-zero exit status.
	Failed   bool
	Errors   int
	Warnings int
}

var header = []string{"Asset", "Size", "Chunks", "", "", "Chunk Names"}

// Reporter writes compilation results. It is safe for concurrent use; every
// report is written in one piece.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
	bc  config.BuildContext

	red, yellow, green, white lipgloss.Style
}

// New returns a Reporter writing to out. Colors are used only when out is a
// terminal.
func New(out io.Writer, bc config.BuildContext) *Reporter {
	r := lipgloss.NewRenderer(out)
	return &Reporter{
		out:    out,
		bc:     bc,
		red:    r.NewStyle().Foreground(lipgloss.Color("1")),
		yellow: r.NewStyle().Foreground(lipgloss.Color("3")),
		green:  r.NewStyle().Foreground(lipgloss.Color("2")),
		white:  r.NewStyle().Foreground(lipgloss.Color("7")),
	}
}

// Report prints stats and returns the exit decision. Errors fail the run in
// production only.
func (r *Reporter) Report(stats *bundle.Stats) Decision {
	var buf bytes.Buffer
	d := Decision{Errors: len(stats.Errors), Warnings: len(stats.Warnings)}

	for _, e := range stats.Errors {
		buf.WriteString(r.red.Render(e) + "\n")
	}
	for _, w := range stats.Warnings {
		buf.WriteString(r.yellow.Render(w) + "\n")
	}
	buf.WriteString("\n")

	if stats.HasErrors() {
		if !r.bc.IsDevelopment() {
			buf.WriteString(r.red.Render("Compile with errors!") + "\n")
			d.Failed = true
		}
	} else {
		r.writeSummary(&buf, stats)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.out.Write(buf.Bytes())
	return d
}

// Println writes one line in the given color ("red", "yellow", "green",
// anything else is uncolored). Lines never interleave with reports.
func (r *Reporter) Println(color, msg string) {
	style := lipgloss.NewStyle()
	switch color {
	case "red":
		style = r.red
	case "yellow":
		style = r.yellow
	case "green":
		style = r.green
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, style.Render(msg))
}

func (r *Reporter) writeSummary(buf *bytes.Buffer, stats *bundle.Stats) {
	summary := fmt.Sprintf("Hash: %s\nTime: %dms", stats.Hash, stats.Duration.Milliseconds())
	if stats.Language != "" {
		summary += "\nLanguage: " + stats.Language
	}
	buf.WriteString(r.white.Render(summary) + "\n")

	table := Table(stats.Assets)
	for _, line := range strings.Split(strings.TrimRight(table, "\n"), "\n") {
		buf.WriteString(r.green.Render(line) + "\n")
	}
	buf.WriteString(r.green.Render("Build Done!") + "\n")
}

// Table renders the aligned asset table without colors.
func Table(assets []bundle.Asset) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(true)

	for _, a := range assets {
		table.Append(Row(a))
	}
	table.Render()
	return buf.String()
}

// Row formats one asset: base name, size, chunk ids, [emitted], [big], chunk names.
func Row(a bundle.Asset) []string {
	chunks := make([]string, len(a.Chunks))
	for i, c := range a.Chunks {
		chunks[i] = strconv.Itoa(c)
	}
	emitted, big := "", ""
	if a.Emitted {
		emitted = "[emitted]"
	}
	if a.Oversize {
		big = "[big]"
	}
	return []string{
		path.Base(a.Name),
		FormatSize(a.Size),
		strings.Join(chunks, ", "),
		emitted,
		big,
		strings.Join(a.ChunkNames, ", "),
	}
}
