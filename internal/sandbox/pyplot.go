package sandbox

import (
	"path"
	"strconv"
	"strings"
)

// maxArtifacts caps the charts one run can produce.
const maxArtifacts = 16

type seriesKind int

const (
	seriesLine seriesKind = iota
	seriesScatter
	seriesBar
	seriesHist
	seriesHLine
	seriesVLine
)

// series is one plotted data set.
type series struct {
	Kind      seriesKind
	X, Y      []float64
	Width     []float64 // bar widths, hist bin widths
	Ticks     []string  // category labels for bar charts
	Label     string
	Color     string
	LineStyle string // "-", "--", ":", "-." or "" for none
	Marker    string // "o", "s", "^", "." or ""
}

// Axes is one plotting area.
type Axes struct {
	Title, XLabel, YLabel string
	Series                []*series
	Legend                bool
	Grid                  bool
	XLim, YLim            *[2]float64
	fig                   *Figure
	row, col              int
}

func (*Axes) Type() string { return "Axes" }

// Figure is a matplotlib figure. Width and Height are in inches.
type Figure struct {
	Width, Height float64
	Title         string
	Rows, Cols    int
	Axes          []*Axes
	num           int
}

func (*Figure) Type() string { return "Figure" }

// plotState is pyplot's implicit current figure and axes.
type plotState struct {
	current *Figure
	cur     *Axes
	count   int
}

func (in *Interp) newFigure(w, h float64, rows, cols int) *Figure {
	in.plots.count++
	f := &Figure{Width: w, Height: h, Rows: rows, Cols: cols, num: in.plots.count}
	in.plots.current = f
	in.plots.cur = nil
	return f
}

func (f *Figure) addAxes(row, col int) *Axes {
	ax := &Axes{fig: f, row: row, col: col}
	f.Axes = append(f.Axes, ax)
	return ax
}

func (in *Interp) gcf() *Figure {
	if in.plots.current == nil {
		in.newFigure(6.4, 4.8, 1, 1)
	}
	return in.plots.current
}

func (in *Interp) gca() *Axes {
	f := in.gcf()
	if in.plots.cur != nil && in.plots.cur.fig == f {
		return in.plots.cur
	}
	if len(f.Axes) == 0 {
		f.addAxes(0, 0)
	}
	in.plots.cur = f.Axes[0]
	return in.plots.cur
}

var colorCycle = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf"}

var namedColors = map[string]string{
	"b": "#1f77b4", "blue": "#1f77b4", "g": "#2ca02c", "green": "#2ca02c",
	"r": "#d62728", "red": "#d62728", "c": "#17becf", "cyan": "#17becf",
	"m": "#e377c2", "magenta": "#e377c2", "y": "#bcbd22", "yellow": "#bcbd22",
	"k": "#000000", "black": "#000000", "w": "#ffffff", "white": "#ffffff",
	"orange": "#ff7f0e", "purple": "#9467bd", "brown": "#8c564b",
	"pink": "#e377c2", "gray": "#7f7f7f", "grey": "#7f7f7f",
}

func resolveColor(c string) (string, error) {
	if hex, ok := namedColors[strings.ToLower(c)]; ok {
		return hex, nil
	}
	if strings.HasPrefix(c, "C") && len(c) == 2 && c[1] >= '0' && c[1] <= '9' {
		return colorCycle[c[1]-'0'], nil
	}
	if len(c) == 7 && c[0] == '#' {
		if _, err := strconv.ParseUint(c[1:], 16, 32); err == nil {
			return strings.ToLower(c), nil
		}
	}
	return "", newExc(ValueError, reprValue(Str(c))+" is not a valid color value.")
}

func (ax *Axes) nextColor() string {
	return colorCycle[len(ax.Series)%len(colorCycle)]
}

// parseFmt splits a plot format string such as "r--o" into its parts.
func parseFmt(s *series, fmtStr string) error {
	rest := fmtStr
	s.LineStyle = ""
	for _, ls := range []string{"--", "-.", "-", ":"} {
		if i := strings.Index(rest, ls); i >= 0 {
			s.LineStyle = ls
			rest = rest[:i] + rest[i+len(ls):]
			break
		}
	}
	hasLine := s.LineStyle != ""
	for _, r := range rest {
		switch {
		case strings.ContainsRune("o.s^v*+x", r):
			s.Marker = string(r)
		case strings.ContainsRune("bgrcmykw", r):
			s.Color = namedColors[string(r)]
		default:
			return newExc(ValueError, "'"+fmtStr+"' is not a valid format string (unrecognized character '"+string(r)+"')")
		}
	}
	if !hasLine && s.Marker != "" {
		s.LineStyle = ""
	} else if !hasLine {
		s.LineStyle = "-"
	}
	return nil
}

// styleKwargs applies the keyword arguments shared by the plotting calls.
func (in *Interp) styleKwargs(s *series, kwargs []KV, allowed ...string) error {
	for _, kw := range kwargs {
		if !containsStr(allowed, kw.Name) {
			return newExc(AttributeError, "unexpected keyword argument '"+kw.Name+"'")
		}
		if kw.Value == None {
			continue
		}
		switch kw.Name {
		case "label":
			s.Label = strValue(kw.Value)
		case "color", "c":
			c, ok := kw.Value.(Str)
			if !ok {
				return typeErrorf("color must be a string, not '%s'", typeName(kw.Value))
			}
			hex, err := resolveColor(string(c))
			if err != nil {
				return err
			}
			s.Color = hex
		case "linestyle", "ls":
			ls := strValue(kw.Value)
			switch ls {
			case "solid":
				ls = "-"
			case "dashed":
				ls = "--"
			case "dotted":
				ls = ":"
			case "dashdot":
				ls = "-."
			case "none", "None", "":
				ls = ""
			}
			s.LineStyle = ls
		case "marker":
			s.Marker = strValue(kw.Value)
		}
	}
	return nil
}

func containsStr(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

var ignoredStyle = []string{"alpha", "linewidth", "lw", "markersize", "ms", "zorder", "edgecolor", "s", "width", "align", "density", "fmt", "height"}

func (in *Interp) floats(v Value) ([]float64, error) {
	a, err := in.arrayArg(v)
	if err != nil {
		return nil, err
	}
	if err := in.checkItems(len(a.Data)); err != nil {
		return nil, err
	}
	return a.Data, nil
}

func indexes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func (in *Interp) plot(ax *Axes, args []Value, kwargs []KV) (Value, error) {
	var added []Value
	for len(args) > 0 {
		s := &series{Kind: seriesLine, LineStyle: "-"}
		var x, y []float64
		var err error
		take := 1
		if len(args) >= 2 {
			if _, isFmt := args[1].(Str); !isFmt {
				take = 2
			}
		}
		if take == 2 {
			if x, err = in.floats(args[0]); err != nil {
				return nil, err
			}
			if y, err = in.floats(args[1]); err != nil {
				return nil, err
			}
			if len(x) != len(y) {
				return nil, newExc(ValueError, "x and y must have same first dimension, but have shapes ("+itoa(len(x))+",) and ("+itoa(len(y))+",)")
			}
		} else {
			if y, err = in.floats(args[0]); err != nil {
				return nil, err
			}
			x = indexes(len(y))
		}
		args = args[take:]
		if len(args) > 0 {
			if f, ok := args[0].(Str); ok {
				if err := parseFmt(s, string(f)); err != nil {
					return nil, err
				}
				args = args[1:]
			}
		}
		if s.Color == "" {
			s.Color = ax.nextColor()
		}
		if err := in.styleKwargs(s, kwargs, append([]string{"label", "color", "c", "linestyle", "ls", "marker"}, ignoredStyle...)...); err != nil {
			return nil, err
		}
		s.X, s.Y = x, y
		ax.Series = append(ax.Series, s)
		added = append(added, &Opaque{TypeName: "Line2D", Repr: "<matplotlib.lines.Line2D object>"})
	}
	if len(added) == 0 {
		return NewList([]Value{}), nil
	}
	return NewList(added), nil
}

func (in *Interp) scatter(ax *Axes, args []Value, kwargs []KV) (Value, error) {
	p, rest, err := splitArgs("scatter", args, kwargs, []string{"x", "y"})
	if err != nil {
		return nil, err
	}
	x, err := in.floats(p[0])
	if err != nil {
		return nil, err
	}
	y, err := in.floats(p[1])
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, newExc(ValueError, "x and y must be the same size")
	}
	s := &series{Kind: seriesScatter, X: x, Y: y, Marker: "o", Color: ax.nextColor()}
	if err := in.styleKwargs(s, rest, append([]string{"label", "color", "c", "marker"}, ignoredStyle...)...); err != nil {
		return nil, err
	}
	ax.Series = append(ax.Series, s)
	return &Opaque{TypeName: "PathCollection", Repr: "<matplotlib.collections.PathCollection object>"}, nil
}

func (in *Interp) bar(ax *Axes, args []Value, kwargs []KV) (Value, error) {
	p, rest, err := splitArgs("bar", args, kwargs, []string{"x", "height", "width"})
	if err != nil {
		return nil, err
	}
	h, err := in.floats(p[1])
	if err != nil {
		return nil, err
	}
	s := &series{Kind: seriesBar, Y: h, Color: ax.nextColor()}
	items, err := in.toSlice(p[0])
	if err != nil {
		return nil, err
	}
	if len(items) != len(h) {
		return nil, newExc(ValueError, "shape mismatch: objects cannot be broadcast to a single shape")
	}
	s.X = indexes(len(items))
	if len(items) > 0 {
		if _, categorical := items[0].(Str); categorical {
			s.Ticks = make([]string, len(items))
			for i, it := range items {
				s.Ticks[i] = strValue(it)
			}
		} else if s.X, err = in.floats(p[0]); err != nil {
			return nil, err
		}
	}
	width := 0.8
	if p[2] != nil {
		if width, err = realArg(p[2]); err != nil {
			return nil, err
		}
	}
	s.Width = fill(len(h), width)
	if err := in.styleKwargs(s, rest, append([]string{"label", "color"}, ignoredStyle...)...); err != nil {
		return nil, err
	}
	ax.Series = append(ax.Series, s)
	return &Opaque{TypeName: "BarContainer", Repr: "<BarContainer object of " + itoa(len(h)) + " artists>"}, nil
}

func (in *Interp) hist(ax *Axes, args []Value, kwargs []KV) (Value, error) {
	p, rest, err := splitArgs("hist", args, kwargs, []string{"x", "bins"})
	if err != nil {
		return nil, err
	}
	data, err := in.floats(p[0])
	if err != nil {
		return nil, err
	}
	bins := int64(10)
	if p[1] != nil {
		if bins, err = indexArg(p[1]); err != nil {
			return nil, err
		}
	}
	if bins < 1 {
		return nil, newExc(ValueError, "`bins` must be positive, when an integer")
	}
	if err := in.checkItems(int(bins)); err != nil {
		return nil, err
	}
	finite := data[:0:0]
	for _, f := range data {
		if !isInfOrNaN(f) {
			finite = append(finite, f)
		}
	}
	lo, hi := 0.0, 1.0
	if len(finite) > 0 {
		lo, hi = finite[0], finite[0]
		for _, f := range finite {
			lo, hi = min(lo, f), max(hi, f)
		}
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	step := (hi - lo) / float64(bins)
	counts := make([]float64, bins)
	for _, f := range finite {
		i := min(int((f-lo)/step), int(bins)-1)
		counts[i]++
	}
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	s := &series{Kind: seriesHist, X: edges[:bins], Y: counts, Width: fill(int(bins), step), Color: ax.nextColor()}
	if err := in.styleKwargs(s, rest, append([]string{"label", "color"}, ignoredStyle...)...); err != nil {
		return nil, err
	}
	ax.Series = append(ax.Series, s)
	return Tuple{newArray(counts, dtypeFloat), newArray(edges, dtypeFloat), &Opaque{TypeName: "BarContainer", Repr: "<BarContainer object of " + itoa(int(bins)) + " artists>"}}, nil
}

func (in *Interp) refLine(ax *Axes, kind seriesKind, name string, args []Value, kwargs []KV) (Value, error) {
	key := "y"
	if kind == seriesVLine {
		key = "x"
	}
	p, rest, err := splitArgs(name, args, kwargs, []string{key})
	if err != nil {
		return nil, err
	}
	at := 0.0
	if p[0] != nil {
		if at, err = realArg(p[0]); err != nil {
			return nil, err
		}
	}
	s := &series{Kind: kind, X: []float64{at}, Y: []float64{at}, LineStyle: "-", Color: ax.nextColor()}
	if err := in.styleKwargs(s, rest, append([]string{"label", "color", "c", "linestyle", "ls"}, ignoredStyle...)...); err != nil {
		return nil, err
	}
	ax.Series = append(ax.Series, s)
	return &Opaque{TypeName: "Line2D", Repr: "<matplotlib.lines.Line2D object>"}, nil
}

// splitArgs binds the leading named parameters and returns the keywords
// left over for styling.
func splitArgs(fname string, args []Value, kwargs []KV, names []string) ([]Value, []KV, error) {
	var own, rest []KV
	for _, kw := range kwargs {
		if containsStr(names, kw.Name) {
			own = append(own, kw)
		} else {
			rest = append(rest, kw)
		}
	}
	required := len(names)
	switch fname {
	case "bar":
		required = 2
	case "hist":
		required = 1
	case "axhline", "axvline":
		required = 0
	}
	p, err := bindArgs(fname, args, own, names, required)
	return p, rest, err
}

func (in *Interp) limits2(name string, args []Value, kwargs []KV) (*[2]float64, error) {
	if len(args) == 1 {
		if t, ok := args[0].(Tuple); ok {
			args = t
		} else if l, ok := args[0].(*List); ok {
			args = l.Items
		}
	}
	p, err := bindArgs(name, args, kwargs, []string{"left", "right"}, 2)
	if err != nil {
		return nil, err
	}
	lo, err := realArg(p[0])
	if err != nil {
		return nil, err
	}
	hi, err := realArg(p[1])
	if err != nil {
		return nil, err
	}
	return &[2]float64{lo, hi}, nil
}

func textArg(name string, args []Value, kwargs []KV) (string, error) {
	var own []KV
	for _, kw := range kwargs {
		if kw.Name == "label" || kw.Name == "t" {
			own = append(own, KV{Name: "label", Value: kw.Value})
		}
	}
	p, err := bindArgs(name, args, own, []string{"label"}, 1)
	if err != nil {
		return "", err
	}
	return strValue(p[0]), nil
}

// axesMethod implements the calls shared by pyplot's implicit axes and
// explicit Axes objects.
func (in *Interp) axesMethod(ax *Axes, name string, args []Value, kwargs []KV) (Value, error) {
	if err := in.tick(); err != nil {
		return nil, err
	}
	var err error
	switch name {
	case "plot":
		return in.plot(ax, args, kwargs)
	case "scatter":
		return in.scatter(ax, args, kwargs)
	case "bar":
		return in.bar(ax, args, kwargs)
	case "hist":
		return in.hist(ax, args, kwargs)
	case "axhline":
		return in.refLine(ax, seriesHLine, name, args, kwargs)
	case "axvline":
		return in.refLine(ax, seriesVLine, name, args, kwargs)
	case "set_title", "title":
		ax.Title, err = textArg(name, args, kwargs)
	case "set_xlabel", "xlabel":
		ax.XLabel, err = textArg(name, args, kwargs)
	case "set_ylabel", "ylabel":
		ax.YLabel, err = textArg(name, args, kwargs)
	case "set_xlim", "xlim":
		ax.XLim, err = in.limits2(name, args, kwargs)
	case "set_ylim", "ylim":
		ax.YLim, err = in.limits2(name, args, kwargs)
	case "legend":
		ax.Legend = true
	case "grid":
		ax.Grid = true
		if len(args) > 0 {
			ax.Grid, err = in.truthy(args[0])
		}
	}
	if err != nil {
		return nil, err
	}
	return None, nil
}

var axesMethods = []string{"plot", "scatter", "bar", "hist", "axhline", "axvline", "set_title",
	"set_xlabel", "set_ylabel", "set_xlim", "set_ylim", "legend", "grid"}

func (in *Interp) axesAttr(ax *Axes, name string) (Value, error) {
	switch name {
	case "title":
		return Str(ax.Title), nil
	case "figure":
		return ax.fig, nil
	}
	if !containsStr(axesMethods, name) {
		return nil, newExc(AttributeError, "'Axes' object has no attribute '"+name+"'")
	}
	return method("Axes", name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		return in.axesMethod(ax, name, args, kwargs)
	}), nil
}

func (in *Interp) figureAttr(f *Figure, name string) (Value, error) {
	m := func(fn goFunc) (Value, error) { return method("Figure", name, fn), nil }
	switch name {
	case "axes":
		out := make([]Value, len(f.Axes))
		for i, ax := range f.Axes {
			out[i] = ax
		}
		return NewList(out), nil
	case "savefig":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			return in.savefig(f, args, kwargs)
		})
	case "suptitle":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			t, err := textArg(name, args, kwargs)
			f.Title = t
			return None, err
		})
	case "tight_layout", "show":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) { return None, nil })
	case "set_size_inches":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			sz, err := in.limits2(name, args, kwargs)
			if err != nil {
				return nil, err
			}
			return None, f.resize(sz[0], sz[1])
		})
	case "add_subplot", "gca":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if name == "gca" || len(args) == 0 {
				in.plots.current = f
				return in.gca(), nil
			}
			pos, err := subplotPos(args)
			if err != nil {
				return nil, err
			}
			f.Rows, f.Cols = pos[0], pos[1]
			ax := f.addAxes((pos[2]-1)/pos[1], (pos[2]-1)%pos[1])
			in.plots.current, in.plots.cur = f, ax
			return ax, nil
		})
	}
	return nil, newExc(AttributeError, "'Figure' object has no attribute '"+name+"'")
}

func (f *Figure) resize(w, h float64) error {
	if w <= 0 || h <= 0 || w > 50 || h > 50 {
		return newExc(ValueError, "figure size must be positive finite not ("+formatFloatRepr(w)+", "+formatFloatRepr(h)+")")
	}
	f.Width, f.Height = w, h
	return nil
}

// subplotPos accepts add_subplot(2, 1, 1) or add_subplot(211).
func subplotPos(args []Value) ([3]int, error) {
	var pos [3]int
	if len(args) == 1 {
		n, err := indexArg(args[0])
		if err != nil {
			return pos, err
		}
		if n < 111 || n > 999 {
			return pos, newExc(ValueError, "Integer subplot specification must be a three-digit number, not "+strconv.FormatInt(n, 10))
		}
		args = Tuple{Int(n / 100), Int(n / 10 % 10), Int(n % 10)}
	}
	if len(args) != 3 {
		return pos, typeErrorf("add_subplot() takes 1 or 3 positional arguments but %d were given", len(args))
	}
	for i, a := range args {
		n, err := indexArg(a)
		if err != nil {
			return pos, err
		}
		pos[i] = int(n)
	}
	if pos[0] < 1 || pos[1] < 1 || pos[0]*pos[1] > 64 || pos[2] < 1 || pos[2] > pos[0]*pos[1] {
		return pos, newExc(ValueError, "num must be an integer with 1 <= num <= "+itoa(max(pos[0]*pos[1], 1)))
	}
	return pos, nil
}

func (in *Interp) figsize(v Value, f *Figure) error {
	if v == nil || v == None {
		return nil
	}
	sz, err := in.limits2("figsize", []Value{v}, nil)
	if err != nil {
		return err
	}
	return f.resize(sz[0], sz[1])
}

// savefig renders f into an artifact. The name's directory part is
// dropped and the extension is forced to .pdf: nothing touches the
// filesystem and PDF is the only output format.
func (in *Interp) savefig(f *Figure, args []Value, kwargs []KV) (Value, error) {
	var own []KV
	for _, kw := range kwargs {
		if kw.Name == "fname" {
			own = append(own, kw)
		}
	}
	p, err := bindArgs("savefig", args, own, []string{"fname"}, 1)
	if err != nil {
		return nil, err
	}
	name := path.Base(strings.ReplaceAll(strValue(p[0]), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "figure"
	}
	name = strings.TrimSuffix(name, path.Ext(name)) + ".pdf"
	return None, in.emit(f, name)
}

func (in *Interp) emit(f *Figure, name string) error {
	if len(in.artifacts) >= maxArtifacts {
		return resourceError("artifact limit of %d exceeded", maxArtifacts)
	}
	n := 0
	for _, ax := range f.Axes {
		for _, s := range ax.Series {
			n += len(s.X)
		}
	}
	if err := in.charge(int64(1000 + n)); err != nil {
		return err
	}
	data, err := renderPDF(f)
	if err != nil {
		return err
	}
	in.artifacts = append(in.artifacts, Artifact{Name: name, MediaType: "application/pdf", Data: data})
	return nil
}

func newMatplotlibModule(in *Interp) *Module {
	m := newModule("matplotlib")
	m.Attrs["use"] = builtin("use", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		_, err := bindArgs("use", args, kwargs, []string{"backend", "force"}, 1)
		return None, err
	})
	return m
}

func newPyplotModule(in *Interp) *Module {
	m := newModule("matplotlib.pyplot")
	a := m.Attrs
	for _, name := range []string{"plot", "scatter", "bar", "hist", "axhline", "axvline", "title",
		"xlabel", "ylabel", "xlim", "ylim", "legend", "grid"} {
		a[name] = builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			return in.axesMethod(in.gca(), name, args, kwargs)
		})
	}
	a["figure"] = builtin("figure", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("figure", args, kwargs, []string{"num", "figsize", "dpi"}, 0)
		if err != nil {
			return nil, err
		}
		f := in.newFigure(6.4, 4.8, 1, 1)
		return f, in.figsize(p[1], f)
	})
	a["subplots"] = builtin("subplots", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		var own []KV
		for _, kw := range kwargs {
			if containsStr([]string{"nrows", "ncols", "figsize"}, kw.Name) {
				own = append(own, kw)
			}
		}
		p, err := bindArgs("subplots", args, own, []string{"nrows", "ncols", "figsize"}, 0)
		if err != nil {
			return nil, err
		}
		dims := [2]int64{1, 1}
		for i := range dims {
			if p[i] != nil {
				if dims[i], err = indexArg(p[i]); err != nil {
					return nil, err
				}
			}
		}
		rows, cols := int(dims[0]), int(dims[1])
		if rows < 1 || cols < 1 || rows*cols > 64 {
			return nil, newExc(ValueError, "Number of rows and columns must be positive integers with at most 64 subplots")
		}
		f := in.newFigure(6.4, 4.8, rows, cols)
		if err := in.figsize(p[2], f); err != nil {
			return nil, err
		}
		grid := make([]Value, 0, rows)
		for r := range rows {
			row := make([]Value, cols)
			for c := range cols {
				row[c] = f.addAxes(r, c)
			}
			grid = append(grid, NewList(row))
		}
		in.plots.cur = f.Axes[0]
		switch {
		case rows == 1 && cols == 1:
			return Tuple{f, f.Axes[0]}, nil
		case rows == 1:
			return Tuple{f, grid[0]}, nil
		case cols == 1:
			col := make([]Value, rows)
			for i, ax := range f.Axes {
				col[i] = ax
			}
			return Tuple{f, NewList(col)}, nil
		}
		return Tuple{f, NewList(grid)}, nil
	})
	a["subplot"] = builtin("subplot", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		f := in.gcf()
		pos, err := subplotPos(args)
		if err != nil {
			return nil, err
		}
		f.Rows, f.Cols = pos[0], pos[1]
		row, col := (pos[2]-1)/pos[1], (pos[2]-1)%pos[1]
		for _, ax := range f.Axes {
			if ax.row == row && ax.col == col {
				in.plots.cur = ax
				return ax, nil
			}
		}
		ax := f.addAxes(row, col)
		in.plots.cur = ax
		return ax, nil
	})
	a["gcf"] = builtin("gcf", func(in *Interp, args []Value, kwargs []KV) (Value, error) { return in.gcf(), nil })
	a["gca"] = builtin("gca", func(in *Interp, args []Value, kwargs []KV) (Value, error) { return in.gca(), nil })
	a["suptitle"] = builtin("suptitle", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		t, err := textArg("suptitle", args, kwargs)
		in.gcf().Title = t
		return None, err
	})
	a["tight_layout"] = builtin("tight_layout", func(in *Interp, args []Value, kwargs []KV) (Value, error) { return None, nil })
	a["xticks"] = builtin("xticks", func(in *Interp, args []Value, kwargs []KV) (Value, error) { return None, nil })
	a["yticks"] = a["xticks"]
	a["savefig"] = builtin("savefig", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		return in.savefig(in.gcf(), args, kwargs)
	})
	a["show"] = builtin("show", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		if in.plots.current == nil {
			return None, nil
		}
		f := in.plots.current
		if err := in.emit(f, "figure-"+itoa(f.num)+".pdf"); err != nil {
			return nil, err
		}
		in.plots.current, in.plots.cur = nil, nil
		return None, nil
	})
	a["close"] = builtin("close", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		in.plots.current, in.plots.cur = nil, nil
		return None, nil
	})
	return m
}
