package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Channel selects a single colour component to threshold on.
//
// Every channel is scaled into 0-255 so one threshold range type serves all
// of them:
//   - Red, Green, Blue: the 8-bit sRGB component
//   - Hue: 0-360 degrees mapped onto 0-255
//   - Saturation, Value: HSV components, 0-1 mapped onto 0-255
//   - LabL: CIE L*, 0-1 mapped onto 0-255
//   - LabA, LabB: CIE a* and b*, -1..1 mapped onto 0-255 (128 is neutral)
//   - Luma: ITU-R BT.601 luminance
type Channel int

const (
	ChannelRed Channel = iota
	ChannelGreen
	ChannelBlue
	ChannelHue
	ChannelSaturation
	ChannelValue
	ChannelLabL
	ChannelLabA
	ChannelLabB
	ChannelLuma
)

var channelNames = [...]string{
	ChannelRed:        "red",
	ChannelGreen:      "green",
	ChannelBlue:       "blue",
	ChannelHue:        "hue",
	ChannelSaturation: "saturation",
	ChannelValue:      "value",
	ChannelLabL:       "lab_l",
	ChannelLabA:       "lab_a",
	ChannelLabB:       "lab_b",
	ChannelLuma:       "luma",
}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel converts a channel name such as "lab_a" or "hue".
func ParseChannel(s string) (Channel, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range channelNames {
		if name == key {
			return Channel(i), nil
		}
	}
	return ChannelRed, fmt.Errorf("unknown channel: %s", s)
}

// ChannelByte returns the 0-255 scaled value of one channel for c.
func ChannelByte(c color.Color, ch Channel) uint8 {
	cf, _ := colorful.MakeColor(c)
	cf = cf.Clamped()

	switch ch {
	case ChannelRed:
		return toByte(cf.R)
	case ChannelGreen:
		return toByte(cf.G)
	case ChannelBlue:
		return toByte(cf.B)
	case ChannelHue:
		h, _, _ := cf.Hsv()
		return toByte(h / 360)
	case ChannelSaturation:
		_, s, _ := cf.Hsv()
		return toByte(s)
	case ChannelValue:
		_, _, v := cf.Hsv()
		return toByte(v)
	case ChannelLabL:
		l, _, _ := cf.Lab()
		return toByte(l)
	case ChannelLabA:
		_, a, _ := cf.Lab()
		return toByte((a + 1) / 2)
	case ChannelLabB:
		_, _, b := cf.Lab()
		return toByte((b + 1) / 2)
	case ChannelLuma:
		return toByte(0.299*cf.R + 0.587*cf.G + 0.114*cf.B)
	}
	return 0
}

// ExtractChannel converts img into a single-channel image of ch.
//
// Conversion goes through go-colorful per pixel, so identical colours are
// memoised to keep photos with large flat areas cheap.
func ExtractChannel(img image.Image, ch Channel) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	memo := make(map[color.RGBA]uint8)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			key := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			v, ok := memo[key]
			if !ok {
				v = ChannelByte(key, ch)
				if len(memo) < 1<<16 {
					memo[key] = v
				}
			}
			out.Pix[out.PixOffset(x, y)] = v
		}
	}
	return out
}

// InRange returns a mask of the pixels of a single-channel image whose
// value lies in [lo, hi]. When invert is set the selection is flipped.
func InRange(ch *image.Gray, lo, hi uint8, invert bool) *image.Gray {
	out := image.NewGray(ch.Rect)
	for y := ch.Rect.Min.Y; y < ch.Rect.Max.Y; y++ {
		for x := ch.Rect.Min.X; x < ch.Rect.Max.X; x++ {
			v := ch.Pix[ch.PixOffset(x, y)]
			if (v >= lo && v <= hi) != invert {
				out.Pix[out.PixOffset(x, y)] = 255
			}
		}
	}
	return out
}

// MeanHSV returns the average hue (degrees, circular mean), saturation and
// value of the pixels of img selected by mask. ok is false when the mask
// selects nothing.
func MeanHSV(img image.Image, mask *image.Gray) (h, s, v float64, ok bool) {
	var sinSum, cosSum, sSum, vSum float64
	n := 0

	b := img.Bounds().Intersect(mask.Rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.Pix[mask.PixOffset(x, y)] == 0 {
				continue
			}
			cf, _ := colorful.MakeColor(img.At(x, y))
			hh, ss, vv := cf.Clamped().Hsv()
			rad := hh * math.Pi / 180
			sinSum += math.Sin(rad)
			cosSum += math.Cos(rad)
			sSum += ss
			vSum += vv
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0, false
	}

	h = math.Atan2(sinSum, cosSum) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h, sSum / float64(n), vSum / float64(n), true
}

func toByte(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}
