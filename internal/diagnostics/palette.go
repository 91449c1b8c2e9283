// Package diagnostics renders consolidation results for humans: a colour
// per classification and an overlay of hull outlines on the source image.
//
// Colours are kept here, apart from the classification enum, so the engine
// never depends on presentation.
package diagnostics

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/leafmask/internal/consolidation"
	"github.com/ironsheep/leafmask/internal/region"
)

var classColors = map[consolidation.Classification]string{
	consolidation.FullyInside:               "#00c853",
	consolidation.Overlaps:                  "#64dd17",
	consolidation.ProtectedDistanceOK:       "#00b8d4",
	consolidation.ProtectedSizeOK:           "#2962ff",
	consolidation.OKTolerance:               "#aeea00",
	consolidation.TooSmall:                  "#ff6d00",
	consolidation.TooFar:                    "#d50000",
	consolidation.Outside:                   "#616161",
	consolidation.BigEnoughToIgnoreDistance: "#aa00ff",
}

var tagColors = map[region.Tag]string{
	region.TagKeep:    "#ffffff",
	region.TagDelete:  "#ff1744",
	region.TagSafe:    "#00e5ff",
	region.TagEnforce: "#ffea00",
}

// ReferenceColor outlines the reference hull.
var ReferenceColor = color.RGBA{255, 255, 255, 255}

// ClassColor returns the display colour of a classification.
func ClassColor(c consolidation.Classification) color.RGBA {
	hex, ok := classColors[c]
	if !ok {
		return color.RGBA{128, 128, 128, 255}
	}
	return mustHex(hex)
}

// TagColor returns the outline colour of a region tag. Morphology and
// bookkeeping tags share a neutral grey.
func TagColor(t region.Tag) color.RGBA {
	if hex, ok := tagColors[t]; ok {
		return mustHex(hex)
	}
	return color.RGBA{160, 160, 160, 255}
}

// ParseColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	alpha := uint8(255)
	switch len(s) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid alpha in %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length: %q", s)
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}, nil
}

func mustHex(s string) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// blend mixes base toward tint by t in Lab space.
func blend(base color.Color, tint color.RGBA, t float64) color.RGBA {
	b, _ := colorful.MakeColor(opaque(base))
	c, _ := colorful.MakeColor(tint)
	r, g, bl := b.BlendLab(c, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: bl, A: 255}
}

// opaque drops alpha so colorful.MakeColor accepts transparent pixels.
func opaque(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: 0xffff}
}
