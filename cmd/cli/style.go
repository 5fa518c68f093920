package cli

import (
	"errors"
	"io"

	"charm.land/lipgloss/v2"
)

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// PrintError writes err to w. The commands close to an unknown one are
// listed after it.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	lipgloss.Fprintln(w, errorStyle.Render("error:"), err.Error())

	var sugg SuggestionError
	if !errors.As(err, &sugg) || len(sugg.Others) == 0 {
		return
	}
	lipgloss.Fprintln(w, hintStyle.Render("similar command(s)"))
	for _, n := range sugg.Others {
		lipgloss.Fprintln(w, "  -", commandStyle.Render(n))
	}
}
