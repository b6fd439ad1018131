package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/tonelab/supertonic/tts/assets"
)

var voicesFilter string

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the available voices",
	Long: paragraph(fmt.Sprintf(
		"\nList the voice catalog: five female and five male styles, selectable with %s.",
		keyword("--voice"),
	)),
	Args: cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		voices := assets.Voices()
		if voicesFilter != "" {
			voices = filterVoices(voices, voicesFilter)
			if len(voices) == 0 {
				return fmt.Errorf("no voice matches %q", voicesFilter)
			}
		}

		headerStyle := lipgloss.NewStyle().Bold(true)
		header := row("KEY", "GENDER", "CHARACTER")
		if styled() {
			header = headerStyle.Render(header)
		}
		fmt.Println(header)
		for _, v := range voices {
			fmt.Println(row(v.Key, v.Gender, v.Character))
		}
		return nil
	},
}

// row pads the three columns so the table lines up with wide runes too.
func row(key, gender, character string) string {
	return runewidth.FillRight(key, 5) + runewidth.FillRight(gender, 8) + character
}

// filterVoices fuzzy-matches against each voice's full description, so
// "female soft" and "f3" both work.
func filterVoices(voices []assets.VoiceInfo, pattern string) []assets.VoiceInfo {
	targets := make([]string, len(voices))
	for i, v := range voices {
		targets[i] = strings.Join([]string{v.Key, v.Gender, v.Character}, " ")
	}
	matches := fuzzy.Find(pattern, targets)

	filtered := make([]assets.VoiceInfo, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, voices[m.Index])
	}
	return filtered
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesFilter, "filter", "f", "", "fuzzy-filter the catalog (key, gender, or character)")
}
