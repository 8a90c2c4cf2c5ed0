// Package render formats audit results for terminals and pipes.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/risk"
)

// Formats accepted by the CLI's --format flag.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Printer writes reports to w. Colour is used only when w is a terminal that
// supports it.
type Printer struct {
	w       io.Writer
	verbose bool
	tiers   map[risk.Tier]lipgloss.Style
	header  lipgloss.Style
	faint   lipgloss.Style
}

// NewPrinter creates a Printer. verbose adds per-permission detail to reports.
func NewPrinter(w io.Writer, verbose bool) *Printer {
	re := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		verbose: verbose,
		tiers: map[risk.Tier]lipgloss.Style{
			risk.TierLow:      re.NewStyle().Foreground(lipgloss.Color("2")),
			risk.TierMedium:   re.NewStyle().Foreground(lipgloss.Color("3")),
			risk.TierHigh:     re.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
			risk.TierCritical: re.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Reverse(true),
		},
		header: re.NewStyle().Bold(true),
		faint:  re.NewStyle().Faint(true),
	}
}

// Tier renders a tier label in its colour.
func (p *Printer) Tier(t risk.Tier) string {
	return p.tiers[t].Render(t.String())
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Report writes a table of every extension followed by a per-tier summary.
func (p *Printer) Report(r *audit.Report) error {
	if r.Error != "" {
		_, err := fmt.Fprintf(p.w, "Extension inventory unavailable: %s\n", r.Error)
		return err
	}
	if len(r.Extensions) == 0 {
		_, err := fmt.Fprintln(p.w, "No extensions found.")
		return err
	}

	// The tier column is last so colour escapes do not skew alignment.
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tPERMS\tHOSTS\tSCORE\tTIER")
	for _, e := range r.Extensions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
			e.Name, dash(e.Version), len(e.Permissions), hostSummary(e), e.Score, p.Tier(e.Tier))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if p.verbose {
		for i := range r.Extensions {
			fmt.Fprintln(p.w)
			if err := p.details(&r.Extensions[i]); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(p.w)
	return p.Summary(r.Summary)
}

// Summary writes the per-tier counts on one line.
func (p *Printer) Summary(s audit.Summary) error {
	parts := make([]string, 0, 4)
	for _, t := range []risk.Tier{risk.TierCritical, risk.TierHigh, risk.TierMedium, risk.TierLow} {
		parts = append(parts, fmt.Sprintf("%d %s", s.Count(t), p.Tier(t)))
	}
	noun := "extensions"
	if s.Total == 1 {
		noun = "extension"
	}
	_, err := fmt.Fprintf(p.w, "%s %s: %s\n", p.header.Render(fmt.Sprint(s.Total)), noun, strings.Join(parts, ", "))
	return err
}

// Extension writes the full breakdown of one evaluated extension.
func (p *Printer) Extension(e *audit.ExtensionReport) error {
	return p.details(e)
}

func (p *Printer) details(e *audit.ExtensionReport) error {
	fmt.Fprintf(p.w, "%s  %s\n", p.header.Render(e.Name), p.faint.Render(e.ID))
	fmt.Fprintf(p.w, "  Score:  %d (raw %d × %.2f)  %s\n", e.Score, e.RawScore, e.Multiplier, p.Tier(e.Tier))

	if len(e.Permissions) > 0 {
		fmt.Fprintln(p.w, "  Permissions:")
		for _, f := range e.Permissions {
			mark := ""
			if !f.Known {
				mark = p.faint.Render(" (unrecognised, default weight)")
			}
			fmt.Fprintf(p.w, "    %-22s %3d%s\n", f.Permission, f.Weight, mark)
			if f.Annotation != nil {
				fmt.Fprintf(p.w, "      %s\n      %s\n", f.Annotation.Description, p.faint.Render(f.Annotation.URL))
			}
		}
	}

	if len(e.Hosts) > 0 {
		fmt.Fprintln(p.w, "  Hosts:")
		for _, h := range e.Hosts {
			fmt.Fprintf(p.w, "    %-32s %-20s %.2f\n", h.Pattern, h.Class, h.Multiplier)
		}
	} else {
		fmt.Fprintf(p.w, "  Hosts:  none (×%.2f)\n", risk.ScopeNoHosts)
	}
	return nil
}

// Explanation writes the weight and annotation of one permission.
func (p *Printer) Explanation(e audit.Explanation) error {
	fmt.Fprintf(p.w, "%s\n", p.header.Render(e.Permission))
	if e.Known {
		fmt.Fprintf(p.w, "  Weight:  %d\n", e.Weight)
	} else {
		fmt.Fprintf(p.w, "  Weight:  %d %s\n", e.Weight, p.faint.Render("(not in the weight table, default applied)"))
	}
	if e.Annotation == nil {
		_, err := fmt.Fprintln(p.w, "  No special risk annotation.")
		return err
	}
	_, err := fmt.Fprintf(p.w, "  Risk:    %s\n  See:     %s\n", e.Annotation.Description, e.Annotation.URL)
	return err
}

func hostSummary(e audit.ExtensionReport) string {
	switch len(e.HostPermissions) {
	case 0:
		return "-"
	case 1:
		return e.HostPermissions[0]
	default:
		return fmt.Sprintf("%s (+%d)", e.HostPermissions[0], len(e.HostPermissions)-1)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
