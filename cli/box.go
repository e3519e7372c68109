package cli

import (
	"strings"
	"unicode"
)

const (
	boxTopLeft     = "╒"
	boxTopRight    = "╕"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	ellipsis       = "…"

	// DefaultWidth is the box width used when the caller has no preference.
	DefaultWidth = 60

	borderWidth = 2
)

// Box draws lines inside a frame width columns wide. Long lines are cut
// with an ellipsis.
func Box(width int, lines ...string) string {
	if width <= borderWidth || len(lines) == 0 {
		return ""
	}

	inner := width - borderWidth
	parts := make([]string, 0, len(lines)+borderWidth)
	parts = append(parts, boxTopLeft+strings.Repeat(boxTop, inner)+boxTopRight)

	for _, l := range lines {
		parts = append(parts, boxSide+pad(l, inner)+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n") + "\n"
}

func pad(text string, width int) string {
	length := countGraphic(text)

	if length > width {
		text = truncateGraphic(text, width-1) + ellipsis
		length = width
	}

	return text + strings.Repeat(" ", width-length)
}

func countGraphic(s string) int {
	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}
	}

	return count
}

func truncateGraphic(s string, n int) string {
	var out strings.Builder

	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			if count == n {
				break
			}

			count++
		}

		out.WriteRune(r)
	}

	return out.String()
}
