package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/skariga/absenku/internal/ui"
)

// helpStyle colours every match of re with render. When group is non-zero
// only that capture group is coloured.
type helpStyle struct {
	re     *regexp.Regexp
	group  int
	render func(string) string
}

var helpStyles = []helpStyle{
	// Group headers such as "Attendance:" or "Flags:".
	{regexp.MustCompile(`(?m)^[A-Z][^\n]*:[ \t]*$`), 0, ui.RenderAccent},
	// Subcommand names in the command list.
	{regexp.MustCompile(`(?m)^  ([a-z][\w-]*)  `), 1, ui.RenderCommand},
	// Flag value types, e.g. "--limit int".
	{regexp.MustCompile(`--[\w-]+ (string|int|duration|float64|strings)\b`), 1, ui.RenderMuted},
	// Defaults, e.g. (default "http://localhost:8080").
	{regexp.MustCompile(`\(default [^)]*\)`), 0, ui.RenderMuted},
}

// colorizedHelpFunc renders cobra's usage text with ANSI colours when stdout
// supports them.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, st := range helpStyles {
		s = st.re.ReplaceAllStringFunc(s, func(m string) string {
			if st.group == 0 {
				return st.render(m)
			}
			loc := st.re.FindStringSubmatchIndex(m)
			start, end := loc[2*st.group], loc[2*st.group+1]
			return m[:start] + st.render(m[start:end]) + m[end:]
		})
	}
	return s
}
