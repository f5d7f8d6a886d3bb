package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"boletos/billing"
	"boletos/db"
	"boletos/internal/values"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

// renderResult renders a sync or check result for the terminal.
func renderResult(r *billing.SyncResult, synced bool) string {
	var b strings.Builder

	fmt.Fprintln(&b, titleStyle.Render(fmt.Sprintf("%s (key %s)", r.Client, r.Key)))
	if synced {
		fmt.Fprintln(&b, mutedStyle.Render(fmt.Sprintf("inputs written to row %d", r.Row)))
	}

	t := newTable("Check", "Result", "Value", "Detail")
	failed := 0
	for _, c := range r.Checks {
		result := passStyle.Render("OK")
		if !c.Pass {
			result = failStyle.Render("FAIL")
			failed++
		}
		t.Row(c.Label, result, c.Raw, c.Explanation)
	}
	fmt.Fprintln(&b, t.String())

	if failed == 0 {
		fmt.Fprintln(&b, passStyle.Render("All checks passed"))
	} else {
		fmt.Fprintln(&b, failStyle.Render(fmt.Sprintf("%d of %d checks failed", failed, len(r.Checks))))
	}
	if r.Stale {
		fmt.Fprintln(&b, warnStyle.Render("warning: the spreadsheet was still recalculating; values may be out of date"))
	}
	for _, w := range r.Warnings {
		fmt.Fprintln(&b, warnStyle.Render("warning: "+w))
	}

	total := "-"
	if r.Total != "" {
		total = values.FormatReais(r.TotalNum)
	}
	title := r.Title
	if title == "" {
		title = "-"
	}
	fmt.Fprintf(&b, "Total to issue: %s\n", total)
	fmt.Fprintf(&b, "Document title: %s\n", title)
	fmt.Fprintf(&b, "WhatsApp: %s\n", linkText(r.WhatsApp))
	fmt.Fprintf(&b, "E-mail:   %s\n", linkText(r.Email))
	return b.String()
}

func linkText(l billing.Link) string {
	if !l.Registered {
		return mutedStyle.Render("not registered")
	}
	return l.URL
}

// renderClients renders the squads and a client listing.
func renderClients(squads []string, clients []billing.Client) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Squads: %s\n", strings.Join(squads, ", "))

	t := newTable("Key", "Client", "Squad", "Status", "Row")
	for _, c := range clients {
		t.Row(c.Key, c.Name, c.Squad, c.Status, strconv.Itoa(c.Row))
	}
	fmt.Fprintln(&b, t.String())
	fmt.Fprintf(&b, "%d clients\n", len(clients))
	return b.String()
}

// renderHistory renders recorded sync attempts.
func renderHistory(syncs []db.Sync) string {
	if len(syncs) == 0 {
		return "No syncs recorded.\n"
	}
	now := time.Now()
	t := newTable("When", "Key", "Client", "Outcome", "Checks", "Total", "Took")
	for _, s := range syncs {
		outcome := s.Outcome
		if s.Error != "" {
			outcome += ": " + s.Error
		}
		t.Row(
			humanize.RelTime(s.Started(), now, "ago", "from now"),
			s.Key,
			s.Client,
			outcome,
			fmt.Sprintf("%d/%d", s.ChecksPassed, s.ChecksTotal),
			s.Total,
			s.Duration().Round(10*time.Millisecond).String(),
		)
	}
	return fmt.Sprintf("%s\n%d of %d syncs\n", t.String(), len(syncs), syncs[0].RowCount)
}
