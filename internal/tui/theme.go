package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The canvas must stay readable on light and dark terminals, so colors are
// adaptive and "faint" is only used on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted          lipgloss.TerminalColor = ac("240", "243")
	colorGroupBorder    lipgloss.TerminalColor = ac("250", "243")
	colorGroupTitle     lipgloss.TerminalColor = ac("236", "252")
	colorTaskFg         lipgloss.TerminalColor = ac("235", "252")
	colorSelectedFg     lipgloss.TerminalColor = ac("232", "255")
	colorSelectedBg     lipgloss.TerminalColor = ac("#e9e9e9", "#262626")
	colorPreviewFg      lipgloss.TerminalColor = ac("25", "117")
	colorLockedFg       lipgloss.TerminalColor = ac("130", "214")
	colorStatusBg       lipgloss.TerminalColor = ac("254", "236")
	colorStatusFg       lipgloss.TerminalColor = ac("238", "250")
	colorMinibufferFg   lipgloss.TerminalColor = ac("28", "114")
	colorMinibufferWarn lipgloss.TerminalColor = ac("160", "203")
	colorInputBg        lipgloss.TerminalColor = ac("255", "237")
)

var (
	styleHeader     = lipgloss.NewStyle().Bold(true)
	styleGroup      = lipgloss.NewStyle().Foreground(colorGroupBorder)
	styleGroupTitle = lipgloss.NewStyle().Foreground(colorGroupTitle).Bold(true)
	styleTask       = lipgloss.NewStyle().Foreground(colorTaskFg)
	styleSelected   = lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	stylePreview    = lipgloss.NewStyle().Foreground(colorPreviewFg)
	styleLocked     = lipgloss.NewStyle().Foreground(colorLockedFg)
	styleStatus     = lipgloss.NewStyle().Foreground(colorStatusFg).Background(colorStatusBg)
	styleMinibuffer = lipgloss.NewStyle().Foreground(colorMinibufferFg)
	styleWarn       = lipgloss.NewStyle().Foreground(colorMinibufferWarn)
	styleHelp       = faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
)

// applyColorProfilePreference sets the Lip Gloss color profile for the canvas.
//
// termenv.EnvColorProfile honors CLICOLOR/CLICOLOR_FORCE, which can disable
// colors in an interactive program; only NO_COLOR is honored here.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	profile := termenv.ColorProfile()

	// Trust TERM/COLORTERM when the detector under-reports.
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(term, "256color") && (profile == termenv.Ascii || profile == termenv.ANSI) {
		profile = termenv.ANSI256
	}

	lipgloss.SetColorProfile(profile)
}

// applyThemePreference configures background detection.
//
// Priority:
// 1) CLARITY_CANVAS_THEME=light|dark|auto
// 2) COLORFGBG heuristic ("fg;bg")
// 3) Lip Gloss's own probe
func applyThemePreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("CLARITY_CANVAS_THEME"))) {
	case "light":
		lipgloss.SetHasDarkBackground(false)
		return
	case "dark":
		lipgloss.SetHasDarkBackground(true)
		return
	}

	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			lipgloss.SetHasDarkBackground(bg < 7)
		}
	}
}
