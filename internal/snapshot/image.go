package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// DefaultTolerance is the fraction of pixels allowed to differ.
const DefaultTolerance = 0.01

// channelThreshold is how far (out of 0xffff) a channel may drift before the
// pixel counts as different; it absorbs anti-aliasing noise.
const channelThreshold = 0x1000

// ImageDiff is the result of comparing two PNGs.
type ImageDiff struct {
	Width, Height int
	Differing     int
	// Mask marks differing pixels in red over a faded copy of the expected
	// image. Nil when sizes differ.
	Mask []byte
}

// Ratio is the fraction of pixels that differ.
func (d ImageDiff) Ratio() float64 {
	total := d.Width * d.Height
	if total == 0 {
		return 0
	}
	return float64(d.Differing) / float64(total)
}

// ComparePNG decodes and compares two PNG images. Images of different
// sizes are reported as entirely different.
func ComparePNG(expected, actual []byte) (ImageDiff, error) {
	want, err := png.Decode(bytes.NewReader(expected))
	if err != nil {
		return ImageDiff{}, fmt.Errorf("decode expected png: %w", err)
	}
	got, err := png.Decode(bytes.NewReader(actual))
	if err != nil {
		return ImageDiff{}, fmt.Errorf("decode actual png: %w", err)
	}

	wb, gb := want.Bounds(), got.Bounds()
	if wb.Dx() != gb.Dx() || wb.Dy() != gb.Dy() {
		w, h := max(wb.Dx(), gb.Dx()), max(wb.Dy(), gb.Dy())
		return ImageDiff{Width: w, Height: h, Differing: w * h}, nil
	}

	mask := image.NewRGBA(image.Rect(0, 0, wb.Dx(), wb.Dy()))
	diff := ImageDiff{Width: wb.Dx(), Height: wb.Dy()}
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			wc := want.At(wb.Min.X+x, wb.Min.Y+y)
			gc := got.At(gb.Min.X+x, gb.Min.Y+y)
			if pixelsDiffer(wc, gc) {
				diff.Differing++
				mask.Set(x, y, color.RGBA{R: 0xff, A: 0xff})
				continue
			}
			r, g, b, _ := wc.RGBA()
			gray := uint8(((r + g + b) / 3) >> 8)
			faded := 0xff - (0xff-gray)/4
			mask.Set(x, y, color.RGBA{R: faded, G: faded, B: faded, A: 0xff})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, mask); err != nil {
		return ImageDiff{}, fmt.Errorf("encode diff mask: %w", err)
	}
	diff.Mask = buf.Bytes()
	return diff, nil
}

func pixelsDiffer(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return absDiff(ar, br) > channelThreshold ||
		absDiff(ag, bg) > channelThreshold ||
		absDiff(ab, bb) > channelThreshold ||
		absDiff(aa, ba) > channelThreshold
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
