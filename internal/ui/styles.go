package ui

import (
	"fmt"

	"github.com/skariga/absenku/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorCmd     = 250 // light gray
	colorMuted   = 245 // medium gray
	colorPass    = 114 // green
	colorFail    = 203 // red
	colorPending = 179 // amber
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderStatus colours an attendance status: green when valid, red when
// invalid, amber while validating.
func RenderStatus(s model.Status) string {
	switch {
	case s == model.StatusValid:
		return render(colorPass, string(s))
	case s.IsInvalid():
		return render(colorFail, string(s))
	case s == model.StatusValidating:
		return render(colorPending, string(s))
	}
	return RenderMuted(string(s))
}

// RenderOutcome colours a ping outcome: green when accepted, red otherwise.
func RenderOutcome(o model.Outcome) string {
	if o == model.OutcomeAccepted {
		return render(colorPass, string(o))
	}
	return render(colorFail, string(o))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
