package tui

import (
	"os"
	"strings"
	"sync"
)

// Box glyphs come in a Unicode and an ASCII set; some terminal fonts render
// line-drawing characters badly.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

func applyGlyphPreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("CLARITY_CANVAS_GLYPHS"))) {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

// boxGlyphs are the runes used to outline a rectangle.
type boxGlyphs struct {
	tl, tr, bl, br rune
	h, v           rune
}

func groupBox() boxGlyphs {
	if glyphs() == glyphSetASCII {
		return boxGlyphs{tl: '+', tr: '+', bl: '+', br: '+', h: '-', v: '|'}
	}
	return boxGlyphs{tl: '┌', tr: '┐', bl: '└', br: '┘', h: '─', v: '│'}
}

func taskBox() boxGlyphs {
	if glyphs() == glyphSetASCII {
		return boxGlyphs{tl: '.', tr: '.', bl: '\'', br: '\'', h: '.', v: ':'}
	}
	return boxGlyphs{tl: '╭', tr: '╮', bl: '╰', br: '╯', h: '─', v: '│'}
}

func glyphLock() string {
	if glyphs() == glyphSetASCII {
		return "*"
	}
	return "•"
}
