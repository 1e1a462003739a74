package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var (
	iconOnce sync.Once
	iconPNG  []byte
)

// iconBytes renders the tray icon once: a filled sun disc with rays on a
// transparent background, sized for standard tray slots.
func iconBytes() []byte {
	iconOnce.Do(func() {
		const size = 22
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		center := float64(size) / 2
		discRadius := 5.5
		rayOuter := 9.5
		fill := color.RGBA{R: 250, G: 200, B: 60, A: 255}

		inDisc := func(x, y float64) bool {
			dx, dy := x-center, y-center
			return dx*dx+dy*dy <= discRadius*discRadius
		}
		inRay := func(x, y float64) bool {
			dx, dy := x-center, y-center
			r2 := dx*dx + dy*dy
			if r2 < (discRadius+1.5)*(discRadius+1.5) || r2 > rayOuter*rayOuter {
				return false
			}
			// Eight rays at 45 degree steps
			abs := func(v float64) float64 {
				if v < 0 {
					return -v
				}
				return v
			}
			return abs(dx) < 1.2 || abs(dy) < 1.2 || abs(dx-dy) < 1.7 || abs(dx+dy) < 1.7
		}

		for py := 0; py < size; py++ {
			for px := 0; px < size; px++ {
				x, y := float64(px)+0.5, float64(py)+0.5
				if inDisc(x, y) || inRay(x, y) {
					img.SetRGBA(px, py, fill)
				}
			}
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			// Encoding an in-memory RGBA cannot realistically fail; fall
			// back to an empty icon rather than panicking in the tray
			iconPNG = nil
			return
		}
		iconPNG = buf.Bytes()
	})
	return iconPNG
}
