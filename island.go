package main

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"isle/landmark"
	"isle/spectrum"
)

const (
	islandCharsW = 58
	islandCharsH = 21
	islandPixW   = islandCharsW
	islandPixH   = islandCharsH * 2

	islandPanelWidth = islandCharsW + 2

	// samples per control radius when smoothing the outline
	outlinePerSeg = 4
)

// Pre-computed pixel styles to avoid allocations in render loop
var (
	islandColors = []string{"", "179", "70", "28", "230"} // sand, grass, highland, foam
	islandStyles [5]lipgloss.Style
	islandBg     [5][5]lipgloss.Style
)

func init() {
	for i, c := range islandColors {
		if c != "" {
			islandStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
	}
	for i, fg := range islandColors {
		for j, bg := range islandColors {
			if fg != "" && bg != "" {
				islandBg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
			}
		}
	}
}

var (
	sparkleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("24"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

func landmarkGlyph(k landmark.Kind) (string, string) {
	switch k {
	case landmark.Forest:
		return "♣", "28"
	case landmark.Castle:
		return "♜", "252"
	case landmark.Mountain:
		return "▲", "137"
	case landmark.Lake:
		return "≈", "39"
	}
	return "•", "250"
}

type overlayCell struct {
	r     rune
	style lipgloss.Style
}

// renderIsland draws the audio-reactive outline as a filled landmass on
// a half-block pixel canvas, with landmark markers and labels overlaid
// at their offsets from the map center.
func renderIsland(bins [spectrum.Bins]byte, marks []landmark.Landmark, frame int, recording bool) string {
	radii := spectrum.SmoothClosed(spectrum.Radii(bins[:]), outlinePerSeg)
	n := len(radii)

	centerX := float64(islandPixW) / 2
	centerY := float64(islandPixH) / 2
	maxRadius := spectrum.BaseRadius + 255*spectrum.AmpScale
	scale := (float64(islandPixH)/2 - 1) / maxRadius

	pixels := make([][]int, islandPixH)
	for i := range pixels {
		pixels[i] = make([]int, islandPixW)
	}

	for y := 0; y < islandPixH; y++ {
		for x := 0; x < islandPixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)

			theta := math.Atan2(dy, dx)
			if theta < 0 {
				theta += 2 * math.Pi
			}
			idx := int(theta / (2 * math.Pi) * float64(n))
			if idx >= n {
				idx = n - 1
			}
			r := radii[idx] * scale
			if dist > r {
				continue
			}

			band := dist / r
			switch {
			case recording && band > 0.94:
				pixels[y][x] = 4 // foam at the reactive edge
			case band > 0.82:
				pixels[y][x] = 1
			case band > 0.50:
				pixels[y][x] = 2
			default:
				pixels[y][x] = 3
			}
		}
	}

	overlay := make(map[[2]int]overlayCell)

	// Drifting water sparkles
	for i := 0; i < 6; i++ {
		sx := (i*19 + frame/6*7) % islandCharsW
		sy := (i*7 + frame/11*3) % islandCharsH
		px, py := sx, sy*2
		dx := float64(px) - centerX
		dy := float64(py) - centerY
		if math.Sqrt(dx*dx+dy*dy) > maxRadius*scale {
			overlay[[2]int{sy, sx}] = overlayCell{r: '·', style: sparkleStyle}
		}
	}

	for _, l := range marks {
		cx := int(centerX + l.X*scale + 0.5)
		cy := int((centerY + l.Y*scale) / 2)
		if cy < 0 || cy >= islandCharsH {
			continue
		}
		glyph, color := landmarkGlyph(l.Kind)
		if cx >= 0 && cx < islandCharsW {
			overlay[[2]int{cy, cx}] = overlayCell{
				r:     []rune(glyph)[0],
				style: lipgloss.NewStyle().Foreground(lipgloss.Color(color)),
			}
		}
		for i, r := range l.Name {
			lx := cx + 2 + i
			if lx < 0 || lx >= islandCharsW {
				break
			}
			overlay[[2]int{cy, lx}] = overlayCell{r: r, style: labelStyle}
		}
	}

	var result strings.Builder
	for cy := 0; cy < islandCharsH; cy++ {
		for cx := 0; cx < islandCharsW; cx++ {
			if cell, ok := overlay[[2]int{cy, cx}]; ok {
				result.WriteString(cell.style.Render(string(cell.r)))
				continue
			}
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				result.WriteString(" ")
			case top == bot:
				result.WriteString(islandStyles[top].Render("█"))
			case top != 0 && bot == 0:
				result.WriteString(islandStyles[top].Render("▀"))
			case top == 0 && bot != 0:
				result.WriteString(islandStyles[bot].Render("▄"))
			default:
				result.WriteString(islandBg[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}
