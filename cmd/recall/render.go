package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lexlapax/recall/pkg/extraction"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/mem/stm"
	"github.com/lexlapax/recall/pkg/mmu"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("219"))

	replyStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#61AFEF")).
			PaddingLeft(1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5C07B"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E06C75"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func renderRecord(w io.Writer, r ltm.MemoryRecord) {
	line := fmt.Sprintf("%s %s %s",
		idStyle.Render(fmt.Sprintf("#%d", r.ID)),
		keyStyle.Render(r.Key+":"),
		r.Value,
	)
	if r.Category != "" {
		line += " " + categoryStyle.Render("["+r.Category+"]")
	}
	fmt.Fprintln(w, line)
}

func renderRecords(w io.Writer, records []ltm.MemoryRecord, category string) {
	if len(records) == 0 {
		if category != "" {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("No memories in category %q.", category)))
		} else {
			fmt.Fprintln(w, dimStyle.Render("No memories yet."))
		}
		return
	}
	for _, r := range records {
		renderRecord(w, r)
	}
}

func renderScored(w io.Writer, results []mmu.ScoredRecord) {
	if len(results) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No memories found."))
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s ", dimStyle.Render(fmt.Sprintf("%.3f", r.Score)))
		renderRecord(w, r.Record)
	}
}

func renderCategories(w io.Writer, summary map[string]int) {
	if len(summary) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No categories yet."))
		return
	}

	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "%s %d\n", categoryStyle.Render(name+":"), summary[name])
	}
}

func renderHistory(w io.Writer, turns []stm.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No conversation history."))
		return
	}
	for _, turn := range turns {
		fmt.Fprintf(w, "%s %s\n", userStyle.Render("You:"), turn.User)
		fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Assistant:"), turn.Assistant)
	}
}

func renderReply(w io.Writer, reply string) {
	if strings.TrimSpace(reply) == "" {
		fmt.Fprintln(w, dimStyle.Render("(no reply)"))
		return
	}
	fmt.Fprintln(w, replyStyle.Render(reply))
}

// renderExtraction reports what was learned from the turn. Nothing is shown
// when nothing changed.
func renderExtraction(w io.Writer, report *extraction.Report) {
	if report == nil {
		return
	}
	for _, r := range report.Stored {
		fmt.Fprintln(w, successStyle.Render("Remembered: "+r.Text))
	}
	for _, f := range report.Failed {
		renderError(w, fmt.Errorf("could not remember %q: %w", f.Fact.Text(), f.Err))
	}
}

func renderSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}

func renderError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
}
