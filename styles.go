package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

const wrapAt = 78

var (
	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "27", Dark: "39"})
	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "241", Dark: "243"})
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"})
)

// keyword highlights a word or two in help and status output.
func keyword(s string) string {
	if !styled() {
		return s
	}
	return keywordStyle.Render(s)
}

// subtle renders de-emphasized text.
func subtle(s string) string {
	if !styled() {
		return s
	}
	return subtleStyle.Render(s)
}

// errorText renders a failure message.
func errorText(s string) string {
	if !styled() {
		return s
	}
	return errorStyle.Render(s)
}

// paragraph wraps and indents long-form command help.
func paragraph(s string) string {
	return indent.String(wordwrap.String(s, wrapAt-2), 2)
}

// styled reports whether output should carry color: stdout is a terminal
// and the environment doesn't disable it.
func styled() bool {
	return isTerminal() && termenv.EnvColorProfile() != termenv.Ascii
}
