package mesh

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// maxImageDim caps the raster width and height; the scale shrinks to fit
const maxImageDim = 8192

// Plane selects which two axes a 2D rendering projects onto
type Plane int

const (
	PlaneXY Plane = iota // top-down
	PlaneXZ
	PlaneYZ
)

// ParsePlane parses "xy", "xz" or "yz"
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(s) {
	case "", "xy":
		return PlaneXY, nil
	case "xz":
		return PlaneXZ, nil
	case "yz":
		return PlaneYZ, nil
	}
	return PlaneXY, fmt.Errorf("unknown projection plane %q (want xy, xz or yz)", s)
}

func (pl Plane) String() string {
	switch pl {
	case PlaneXZ:
		return "xz"
	case PlaneYZ:
		return "yz"
	default:
		return "xy"
	}
}

// project drops the axis not in the plane
func (pl Plane) project(p Point) (float64, float64) {
	switch pl {
	case PlaneXZ:
		return float64(p.X), float64(p.Z)
	case PlaneYZ:
		return float64(p.Y), float64(p.Z)
	default:
		return float64(p.X), float64(p.Y)
	}
}

// projectedBounds returns the 2D bounds of every beacon and origin in m
func projectedBounds(m *BeaconMap, pl Plane) (minX, minY, maxX, maxY float64) {
	lo, hi := m.Bounds()
	x0, y0 := pl.project(lo)
	x1, y1 := pl.project(hi)
	return x0, y0, x1, y1
}

// MapColors holds the colors used to draw a beacon map
type MapColors struct {
	Background color.RGBA
	Beacon     color.RGBA
	Scanner    color.RGBA
	Anchor     color.RGBA
	Label      color.RGBA
}

// DefaultMapColors returns the default palette
func DefaultMapColors() MapColors {
	return MapColors{
		Background: color.RGBA{255, 255, 255, 255},
		Beacon:     color.RGBA{70, 70, 70, 255},
		Scanner:    color.RGBA{220, 20, 60, 255}, // Crimson
		Anchor:     color.RGBA{0, 0, 205, 255},   // Medium blue
		Label:      color.RGBA{0, 0, 0, 255},
	}
}

// colorsFromConfig applies configured hex colors over the defaults
func colorsFromConfig(cfg RenderConfig) MapColors {
	c := DefaultMapColors()
	if cfg.Beacon != "" {
		c.Beacon = parseHexColor(cfg.Beacon)
	}
	if cfg.Scanner != "" {
		c.Scanner = parseHexColor(cfg.Scanner)
	}
	return c
}

// MapRenderer draws a beacon map as a raster image
type MapRenderer struct {
	Map        *BeaconMap
	Plane      Plane
	Colors     MapColors
	Scale      float64 // Pixels per world unit (default 0.25)
	Padding    float64 // Padding in world units
	ShowLabels bool
}

// NewMapRenderer creates a raster renderer using the render config
func NewMapRenderer(m *BeaconMap, cfg RenderConfig) *MapRenderer {
	r := &MapRenderer{
		Map:        m,
		Plane:      PlaneXY,
		Colors:     colorsFromConfig(cfg),
		Scale:      cfg.Scale,
		Padding:    cfg.Padding,
		ShowLabels: true,
	}
	if r.Scale <= 0 {
		r.Scale = 0.25
	}
	if r.Padding < 0 {
		r.Padding = 0
	}
	return r
}

// HasDrawableContent returns true if the map has any beacon or scanner
func (r *MapRenderer) HasDrawableContent() bool {
	return r.Map != nil && (len(r.Map.Beacons) > 0 || len(r.Map.Origins) > 0)
}

// effectiveScale shrinks Scale so neither image side exceeds maxImageDim
func (r *MapRenderer) effectiveScale(minX, minY, maxX, maxY float64) float64 {
	w := (maxX - minX) + 2*r.Padding
	h := (maxY - minY) + 2*r.Padding
	scale := r.Scale
	if longest := math.Max(w, h); longest*scale > maxImageDim {
		scale = maxImageDim / longest
	}
	return scale
}

// Render draws the map. Larger coordinates on the plane's second axis are
// drawn higher in the image.
func (r *MapRenderer) Render() *image.RGBA {
	var minX, minY, maxX, maxY float64
	if r.HasDrawableContent() {
		minX, minY, maxX, maxY = projectedBounds(r.Map, r.Plane)
	}
	scale := r.effectiveScale(minX, minY, maxX, maxY)

	width := int(math.Ceil(((maxX-minX)+2*r.Padding)*scale)) + 1
	height := int(math.Ceil(((maxY-minY)+2*r.Padding)*scale)) + 1

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.Colors.Background), image.Point{}, draw.Src)

	if !r.HasDrawableContent() {
		return img
	}

	toPixel := func(p Point) (int, int) {
		x, y := r.Plane.project(p)
		px := (x - minX + r.Padding) * scale
		py := (maxY - y + r.Padding) * scale
		return int(math.Round(px)), int(math.Round(py))
	}

	for _, b := range r.Map.Beacons {
		px, py := toPixel(b)
		drawCircle(img, px, py, 2, r.Colors.Beacon)
	}

	for _, id := range r.Map.ScannerIDs() {
		px, py := toPixel(r.Map.Origins[id])
		c := r.Colors.Scanner
		if id == r.Map.Anchor {
			c = r.Colors.Anchor
		}
		drawSquare(img, px, py, 9, c)
		if r.ShowLabels {
			drawText(img, px+8, py+4, fmt.Sprintf("%d", id), r.Colors.Label)
		}
	}

	if r.ShowLabels {
		r.drawLegend(img)
	}
	return img
}

// drawLegend writes the headline numbers in the top-left corner
func (r *MapRenderer) drawLegend(img *image.RGBA) {
	lines := []string{
		fmt.Sprintf("%d beacons, %d scanners (%s)", r.Map.BeaconCount(), len(r.Map.Origins), r.Plane),
		fmt.Sprintf("anchor %d, max distance %d", r.Map.Anchor, r.Map.MaxOriginDistance()),
	}
	y := 15
	for _, line := range lines {
		drawText(img, 10, y, line, r.Colors.Label)
		y += 16
	}
}

// WritePNG encodes the rendered map as PNG
func (r *MapRenderer) WritePNG(w io.Writer) error {
	return png.Encode(w, r.Render())
}

// SavePNG renders the map and writes it to path
func (r *MapRenderer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := r.WritePNG(f); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	b := img.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
}

// drawSquare draws a filled square
func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	rect := image.Rect(cx-half, cy-half, cx+half+1, cy+half+1).Intersect(img.Bounds())
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawText renders text onto an image at the specified baseline position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// parseHexColor parses a hex color string like "#FF6B6B" to color.RGBA
func parseHexColor(hex string) color.RGBA {
	// Default to red if parsing fails
	defaultColor := color.RGBA{255, 0, 0, 255}

	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return defaultColor
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return defaultColor
	}
	return color.RGBA{r, g, b, 255}
}
