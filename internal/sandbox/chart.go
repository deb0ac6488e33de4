package sandbox

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	ptPerInch   = 72.0
	chartFont   = "Helvetica"
	marginLeft  = 48.0
	marginRight = 14.0
	marginTop   = 26.0
	marginBot   = 36.0
)

// pdfEpoch keeps rendered documents byte-stable for identical figures.
var pdfEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// renderPDF draws f as a single-page vector PDF.
func renderPDF(f *Figure) ([]byte, error) {
	w, h := f.Width*ptPerInch, f.Height*ptPerInch
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetCatalogSort(true)
	pdf.SetProducer("pygate", true)
	pdf.SetTitle(f.Title, true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	c := &canvas{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	top := 0.0
	if f.Title != "" {
		pdf.SetFont(chartFont, "B", 13)
		c.centered(w/2, 18, f.Title)
		top = 18
	}
	rows, cols := max(f.Rows, 1), max(f.Cols, 1)
	cellW, cellH := w/float64(cols), (h-top)/float64(rows)
	for _, ax := range f.Axes {
		x0 := float64(ax.col) * cellW
		y0 := top + float64(ax.row)*cellH
		c.axes(ax, box{
			x: x0 + marginLeft,
			y: y0 + marginTop,
			w: math.Max(cellW-marginLeft-marginRight, 10),
			h: math.Max(cellH-marginTop-marginBot, 10),
		})
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

type box struct{ x, y, w, h float64 }

type canvas struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (c *canvas) centered(x, y float64, s string) {
	s = c.tr(s)
	c.pdf.Text(x-c.pdf.GetStringWidth(s)/2, y, s)
}

func (c *canvas) color(hex string) (int, int, int) {
	if len(hex) != 7 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func (c *canvas) stroke(hex string, width float64, style string) {
	c.pdf.SetDrawColor(c.color(hex))
	c.pdf.SetLineWidth(width)
	switch style {
	case "--":
		c.pdf.SetDashPattern([]float64{6, 3}, 0)
	case ":":
		c.pdf.SetDashPattern([]float64{1.5, 2}, 0)
	case "-.":
		c.pdf.SetDashPattern([]float64{6, 2, 1.5, 2}, 0)
	default:
		c.pdf.SetDashPattern([]float64{}, 0)
	}
}

// bounds is the data range shown on one axis.
type bounds struct{ lo, hi float64 }

func (b *bounds) add(v float64) {
	if isInfOrNaN(v) {
		return
	}
	b.lo, b.hi = math.Min(b.lo, v), math.Max(b.hi, v)
}

func (b bounds) empty() bool { return b.lo > b.hi }

func (b bounds) padded(frac float64) bounds {
	if b.empty() {
		return bounds{0, 1}
	}
	if b.lo == b.hi {
		return bounds{b.lo - 0.5, b.hi + 0.5}
	}
	p := (b.hi - b.lo) * frac
	return bounds{b.lo - p, b.hi + p}
}

func dataBounds(ax *Axes) (bounds, bounds) {
	xb := bounds{math.Inf(1), math.Inf(-1)}
	yb := xb
	for _, s := range ax.Series {
		switch s.Kind {
		case seriesBar:
			for i := range s.X {
				xb.add(s.X[i] - s.Width[i]/2)
				xb.add(s.X[i] + s.Width[i]/2)
				yb.add(0)
				yb.add(s.Y[i])
			}
		case seriesHist:
			for i := range s.X {
				xb.add(s.X[i])
				xb.add(s.X[i] + s.Width[i])
				yb.add(0)
				yb.add(s.Y[i])
			}
		case seriesHLine:
			yb.add(s.Y[0])
		case seriesVLine:
			xb.add(s.X[0])
		default:
			for i := range s.X {
				xb.add(s.X[i])
				yb.add(s.Y[i])
			}
		}
	}
	xb, yb = xb.padded(0.05), yb.padded(0.05)
	if ax.XLim != nil && ax.XLim[0] != ax.XLim[1] {
		xb = bounds{ax.XLim[0], ax.XLim[1]}
	}
	if ax.YLim != nil && ax.YLim[0] != ax.YLim[1] {
		yb = bounds{ax.YLim[0], ax.YLim[1]}
	}
	return xb, yb
}

// ticks returns round tick positions covering b.
func ticks(b bounds) []float64 {
	lo, hi := math.Min(b.lo, b.hi), math.Max(b.lo, b.hi)
	span := hi - lo
	if span <= 0 || isInfOrNaN(span) {
		return nil
	}
	raw := span / 5
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if m*mag >= raw {
			step = m * mag
			break
		}
	}
	var out []float64
	for v := math.Ceil(lo/step) * step; v <= hi+step*1e-9 && len(out) < 20; v += step {
		if math.Abs(v) < step*1e-9 {
			v = 0
		}
		out = append(out, v)
	}
	return out
}

func tickLabel(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func (c *canvas) axes(ax *Axes, r box) {
	pdf := c.pdf
	xb, yb := dataBounds(ax)
	px := func(v float64) float64 { return r.x + (v-xb.lo)/(xb.hi-xb.lo)*r.w }
	py := func(v float64) float64 { return r.y + r.h - (v-yb.lo)/(yb.hi-yb.lo)*r.h }

	pdf.SetFont(chartFont, "", 8)
	pdf.SetTextColor(0, 0, 0)
	var categories []string
	var catX []float64
	for _, s := range ax.Series {
		if s.Kind == seriesBar && s.Ticks != nil {
			categories, catX = s.Ticks, s.X
		}
	}
	if categories != nil {
		for i, label := range categories {
			c.centered(px(catX[i]), r.y+r.h+11, label)
		}
	} else {
		for _, t := range ticks(xb) {
			x := px(t)
			if ax.Grid {
				c.stroke("#dddddd", 0.5, "")
				pdf.Line(x, r.y, x, r.y+r.h)
			}
			c.stroke("#000000", 0.6, "")
			pdf.Line(x, r.y+r.h, x, r.y+r.h+3)
			c.centered(x, r.y+r.h+11, tickLabel(t))
		}
	}
	for _, t := range ticks(yb) {
		y := py(t)
		if ax.Grid {
			c.stroke("#dddddd", 0.5, "")
			pdf.Line(r.x, y, r.x+r.w, y)
		}
		c.stroke("#000000", 0.6, "")
		pdf.Line(r.x-3, y, r.x, y)
		label := c.tr(tickLabel(t))
		pdf.Text(r.x-5-pdf.GetStringWidth(label), y+2.5, label)
	}

	pdf.ClipRect(r.x, r.y, r.w, r.h, false)
	for _, s := range ax.Series {
		c.series(s, r, px, py)
	}
	pdf.ClipEnd()

	c.stroke("#000000", 0.8, "")
	pdf.Rect(r.x, r.y, r.w, r.h, "D")

	if ax.Title != "" {
		pdf.SetFont(chartFont, "", 11)
		c.centered(r.x+r.w/2, r.y-8, ax.Title)
	}
	pdf.SetFont(chartFont, "", 9)
	if ax.XLabel != "" {
		c.centered(r.x+r.w/2, r.y+r.h+25, ax.XLabel)
	}
	if ax.YLabel != "" {
		label := c.tr(ax.YLabel)
		cx, cy := r.x-36, r.y+r.h/2
		pdf.TransformBegin()
		pdf.TransformRotate(90, cx, cy)
		pdf.Text(cx-pdf.GetStringWidth(label)/2, cy, label)
		pdf.TransformEnd()
	}
	if ax.Legend {
		c.legend(ax, r)
	}
}

func (c *canvas) series(s *series, r box, px, py func(float64) float64) {
	pdf := c.pdf
	red, green, blue := c.color(s.Color)
	pdf.SetFillColor(red, green, blue)
	switch s.Kind {
	case seriesBar, seriesHist:
		for i := range s.X {
			left := s.X[i]
			if s.Kind == seriesBar {
				left -= s.Width[i] / 2
			}
			x0, x1 := px(left), px(left+s.Width[i])
			y0, y1 := py(0), py(s.Y[i])
			if isInfOrNaN(x0 + x1 + y0 + y1) {
				continue
			}
			pdf.Rect(math.Min(x0, x1), math.Min(y0, y1), math.Abs(x1-x0), math.Abs(y1-y0), "F")
		}
	case seriesHLine:
		c.stroke(s.Color, 1.2, s.LineStyle)
		pdf.Line(r.x, py(s.Y[0]), r.x+r.w, py(s.Y[0]))
	case seriesVLine:
		c.stroke(s.Color, 1.2, s.LineStyle)
		pdf.Line(px(s.X[0]), r.y, px(s.X[0]), r.y+r.h)
	default:
		if s.Kind == seriesLine && s.LineStyle != "" {
			c.stroke(s.Color, 1.5, s.LineStyle)
			for i := 1; i < len(s.X); i++ {
				x0, y0, x1, y1 := s.X[i-1], s.Y[i-1], s.X[i], s.Y[i]
				if isInfOrNaN(x0) || isInfOrNaN(y0) || isInfOrNaN(x1) || isInfOrNaN(y1) {
					continue
				}
				pdf.Line(px(x0), py(y0), px(x1), py(y1))
			}
		}
		if s.Marker != "" {
			c.stroke(s.Color, 0.5, "")
			for i := range s.X {
				if isInfOrNaN(s.X[i]) || isInfOrNaN(s.Y[i]) {
					continue
				}
				c.marker(s.Marker, px(s.X[i]), py(s.Y[i]))
			}
		}
	}
}

func (c *canvas) marker(m string, x, y float64) {
	const size = 3
	switch m {
	case "s":
		c.pdf.Rect(x-size, y-size, 2*size, 2*size, "F")
	case "^":
		c.pdf.Polygon([]gofpdf.PointType{{X: x, Y: y - size}, {X: x - size, Y: y + size}, {X: x + size, Y: y + size}}, "F")
	case "v":
		c.pdf.Polygon([]gofpdf.PointType{{X: x, Y: y + size}, {X: x - size, Y: y - size}, {X: x + size, Y: y - size}}, "F")
	case "+", "x":
		c.pdf.Line(x-size, y, x+size, y)
		c.pdf.Line(x, y-size, x, y+size)
	case ".":
		c.pdf.Circle(x, y, 1.2, "F")
	default:
		c.pdf.Circle(x, y, size, "F")
	}
}

func (c *canvas) legend(ax *Axes, r box) {
	var labeled []*series
	for _, s := range ax.Series {
		if s.Label != "" {
			labeled = append(labeled, s)
		}
	}
	if len(labeled) == 0 {
		return
	}
	pdf := c.pdf
	pdf.SetFont(chartFont, "", 8)
	width := 0.0
	for _, s := range labeled {
		width = math.Max(width, pdf.GetStringWidth(c.tr(s.Label)))
	}
	const row = 12.0
	w, h := width+34, float64(len(labeled))*row+6
	x, y := r.x+r.w-w-6, r.y+6
	pdf.SetFillColor(255, 255, 255)
	c.stroke("#cccccc", 0.5, "")
	pdf.Rect(x, y, w, h, "FD")
	for i, s := range labeled {
		ly := y + 3 + float64(i)*row + row/2
		switch s.Kind {
		case seriesBar, seriesHist:
			pdf.SetFillColor(c.color(s.Color))
			pdf.Rect(x+5, ly-4, 18, 8, "F")
		default:
			c.stroke(s.Color, 1.5, s.LineStyle)
			if s.LineStyle != "" || s.Kind == seriesHLine || s.Kind == seriesVLine {
				pdf.Line(x+5, ly, x+23, ly)
			}
			if s.Marker != "" {
				pdf.SetFillColor(c.color(s.Color))
				c.marker(s.Marker, x+14, ly)
			}
		}
		pdf.Text(x+28, ly+3, c.tr(s.Label))
	}
}
