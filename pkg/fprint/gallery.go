package fprint

import (
	"fprint/internal/match"
	"fprint/internal/template"
)

// RenderForMatching converts an enrolled template into the match.Point
// form StartVerify/StartIdentify expect, applying the bottom-left-origin,
// (270 - theta) external rendering convention of spec.md §4.8 against an
// image of the given height.
func RenderForMatching(t *template.Template, height int) []match.Point {
	rendered := template.Render(t, height)
	pts := make([]match.Point, len(rendered))
	for i, e := range rendered {
		pts[i] = match.Point{X: e.X, Y: e.Y, Theta: e.Theta}
	}
	return pts
}
