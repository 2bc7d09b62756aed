package mesh

import (
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer renders a beacon map as vector graphics. One canvas unit is
// one world unit.
type VectorRenderer struct {
	Map          *BeaconMap
	Plane        Plane
	Colors       MapColors
	Padding      float64           // Padding in world units
	Resolution   canvas.Resolution // Resolution for PNG output
	GridSpacing  float64           // Grid line spacing in world units; 0 disables
	BeaconRadius float64
	ScannerSize  float64
	ShowLinks    bool // draw a line from each scanner to its parent in the resolution
	Parents      map[int]int
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer(m *BeaconMap, cfg RenderConfig) *VectorRenderer {
	scale := cfg.Scale
	if scale <= 0 {
		scale = 0.25
	}
	padding := cfg.Padding
	if padding < 0 {
		padding = 0
	}
	return &VectorRenderer{
		Map:          m,
		Plane:        PlaneXY,
		Colors:       colorsFromConfig(cfg),
		Padding:      padding,
		Resolution:   canvas.DPMM(scale), // pixels per world unit
		GridSpacing:  1000.0,
		BeaconRadius: 12.0,
		ScannerSize:  60.0,
	}
}

// WithResolution enables parent links taken from res
func (r *VectorRenderer) WithResolution(res *Resolution) *VectorRenderer {
	if res != nil {
		r.Parents = res.Parents
		r.ShowLinks = true
	}
	return r
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// canvasSize returns the drawing bounds and the canvas width and height
func (r *VectorRenderer) canvasSize() (minX, minY, maxX, maxY, width, height float64) {
	if r.Map != nil && (len(r.Map.Beacons) > 0 || len(r.Map.Origins) > 0) {
		minX, minY, maxX, maxY = projectedBounds(r.Map, r.Plane)
	}
	width = (maxX - minX) + 2*r.Padding
	height = (maxY - minY) + 2*r.Padding
	// canvas rejects zero-sized documents
	width = math.Max(width, 1)
	height = math.Max(height, 1)
	return minX, minY, maxX, maxY, width, height
}

// RenderToSVG writes the map as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	minX, minY, maxX, maxY, width, height := r.canvasSize()

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, minX, minY, maxX, maxY, width, height)

	return svgRenderer.Close()
}

// RenderToPNG writes the map as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	minX, minY, maxX, maxY, width, height := r.canvasSize()

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, minX, minY, maxX, maxY, width, height)

	// Rasterizer implements draw.Image
	return png.Encode(w, rast)
}

// renderToCanvas draws background, grid, links, beacons and scanners in that order
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, minX, minY, maxX, maxY, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: r.Colors.Background}
	bgStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	if r.Map == nil {
		return
	}

	toCanvas := func(p Point) (float64, float64) {
		x, y := r.Plane.project(p)
		return (x - minX) + r.Padding, (y - minY) + r.Padding
	}

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Gray}
		gridStyle.StrokeWidth = 4.0
		gridStyle.Dashes = []float64{20.0, 20.0}

		for x := math.Ceil(minX/r.GridSpacing) * r.GridSpacing; x <= maxX; x += r.GridSpacing {
			cx := (x - minX) + r.Padding
			gridPath := &canvas.Path{}
			gridPath.MoveTo(cx, 0)
			gridPath.LineTo(cx, height)
			renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
		}
		for y := math.Ceil(minY/r.GridSpacing) * r.GridSpacing; y <= maxY; y += r.GridSpacing {
			cy := (y - minY) + r.Padding
			gridPath := &canvas.Path{}
			gridPath.MoveTo(0, cy)
			gridPath.LineTo(width, cy)
			renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
		}
	}

	if r.ShowLinks {
		linkStyle := canvas.DefaultStyle
		linkStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		linkStyle.Stroke = canvas.Paint{Color: r.Colors.Scanner}
		linkStyle.StrokeWidth = 8.0

		for _, id := range r.Map.ScannerIDs() {
			parent, ok := r.Parents[id]
			if !ok {
				continue
			}
			from, ok := r.Map.Origins[parent]
			if !ok {
				continue
			}
			x1, y1 := toCanvas(from)
			x2, y2 := toCanvas(r.Map.Origins[id])
			link := &canvas.Path{}
			link.MoveTo(x1, y1)
			link.LineTo(x2, y2)
			renderer.RenderPath(link, linkStyle, canvas.Identity)
		}
	}

	beaconStyle := canvas.DefaultStyle
	beaconStyle.Fill = canvas.Paint{Color: r.Colors.Beacon}
	beaconStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, b := range r.Map.Beacons {
		cx, cy := toCanvas(b)
		renderer.RenderPath(canvas.Circle(r.BeaconRadius).Translate(cx, cy), beaconStyle, canvas.Identity)
	}

	for _, id := range r.Map.ScannerIDs() {
		cx, cy := toCanvas(r.Map.Origins[id])
		scannerStyle := canvas.DefaultStyle
		scannerStyle.Fill = canvas.Paint{Color: r.Colors.Scanner}
		if id == r.Map.Anchor {
			scannerStyle.Fill = canvas.Paint{Color: r.Colors.Anchor}
		}
		scannerStyle.Stroke = canvas.Paint{Color: canvas.Black}
		scannerStyle.StrokeWidth = 5.0

		half := r.ScannerSize / 2
		square := canvas.Rectangle(r.ScannerSize, r.ScannerSize).Translate(cx-half, cy-half)
		renderer.RenderPath(square, scannerStyle, canvas.Identity)
	}
	// TODO: scanner id labels once a font face is bundled for canvas text
}
