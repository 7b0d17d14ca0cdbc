package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// Icon dimensions for system tray.
const iconSize = 22

// Pre-generated PNG icons for each tray state.
var (
	iconIdlePNG    []byte
	iconActivePNG  []byte
	iconOfflinePNG []byte
)

func init() {
	iconIdlePNG = generateArrowsIcon(color.RGBA{128, 128, 128, 255})  // Gray
	iconActivePNG = generateArrowsIcon(color.RGBA{76, 175, 80, 255})  // Green
	iconOfflinePNG = generateArrowsIcon(color.RGBA{211, 47, 47, 255}) // Red
}

// generateArrowsIcon draws an up arrow on the left and a down arrow on
// the right in the given color.
func generateArrowsIcon(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))

	const (
		top       = 3
		bottom    = 18
		headDepth = 5
		shaft     = 2
	)

	// Up arrow centered on x=6
	drawShaft(img, 5, top+headDepth, bottom, shaft, c)
	for i := 0; i < headDepth; i++ {
		for x := 6 - i; x <= 6+i; x++ {
			img.Set(x, top+i, c)
		}
	}

	// Down arrow centered on x=15
	drawShaft(img, 14, top, bottom-headDepth, shaft, c)
	for i := 0; i < headDepth; i++ {
		for x := 15 - i; x <= 15+i; x++ {
			img.Set(x, bottom-i, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func drawShaft(img *image.RGBA, left, top, bottom, width int, c color.RGBA) {
	for y := top; y <= bottom; y++ {
		for x := left; x < left+width; x++ {
			img.Set(x, y, c)
		}
	}
}
