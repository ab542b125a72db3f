package visualize

import (
	"image/color"
)

var whiteColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// bluesAnchors is the nine-step ColorBrewer "Blues" sequential scheme.
var bluesAnchors = []color.RGBA{
	{247, 251, 255, 255},
	{222, 235, 247, 255},
	{198, 219, 239, 255},
	{158, 202, 225, 255},
	{107, 174, 214, 255},
	{66, 146, 198, 255},
	{33, 113, 181, 255},
	{8, 81, 156, 255},
	{8, 48, 107, 255},
}

// bluesPalette implements palette.Palette.
type bluesPalette []color.Color

func (p bluesPalette) Colors() []color.Color {
	return p
}

// blues returns n colors linearly interpolated along bluesAnchors, from
// lightest to darkest.
func blues(n int) bluesPalette {
	if n < 2 {
		n = 2
	}
	out := make(bluesPalette, n)
	segments := float64(len(bluesAnchors) - 1)
	for i := range out {
		pos := float64(i) / float64(n-1) * segments
		lo := int(pos)
		if lo >= len(bluesAnchors)-1 {
			out[i] = bluesAnchors[len(bluesAnchors)-1]
			continue
		}
		frac := pos - float64(lo)
		a, b := bluesAnchors[lo], bluesAnchors[lo+1]
		out[i] = color.RGBA{
			R: lerp(a.R, b.R, frac),
			G: lerp(a.G, b.G, frac),
			B: lerp(a.B, b.B, frac),
			A: 255,
		}
	}
	return out
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}
