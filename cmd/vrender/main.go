// Command vrender renders the layers of a vector dataset to PNG, SVG or the
// terminal.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/canvas"
	"github.com/tingold/orb-render/log"
	"github.com/tingold/orb-render/renderer"
	"github.com/tingold/orb-render/style"
	"github.com/tingold/orb-render/vector"
	"github.com/tingold/orb-render/world"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".config", "vrender", ".env"))

	var app App
	ctx := kong.Parse(&app, kong.Description("Render vector layers."))
	ctx.FatalIfErrorf(app.Exec(ctx))
}

// App defines the command line.
type App struct {
	Input   string   `kong:"arg,required,type=existingfile,help='Dataset to render (.fgb, .geojson).'"`
	Output  string   `kong:"optional,name=output,short=o,type=path,help='Output file, stdout when empty.'"`
	Format  string   `kong:"optional,default=png,enum='png,svg,term',env=VRENDER_FORMAT,help='Output format.'"`
	Width   int      `kong:"optional,default=800,env=VRENDER_WIDTH,help='Image width in pixels.'"`
	Height  int      `kong:"optional,default=600,env=VRENDER_HEIGHT,help='Image height in pixels.'"`
	Cols    int      `kong:"optional,default=80,help='Terminal columns for --format=term.'"`
	Rows    int      `kong:"optional,default=24,help='Terminal rows for --format=term.'"`
	Styles  []string `kong:"optional,name=style,short=s,sep=none,help='Style string of each layer, in layer order.'"`
	SRS     string   `kong:"optional,name=srs,env=VRENDER_SRS,help='Spatial reference of the map, the layer one when empty.'"`
	Filter  string   `kong:"optional,name=filter,short=f,help='Attribute filter applied to every layer.'"`
	Layer   int      `kong:"optional,default=-1,help='Render only this layer.'"`
	Verbose bool     `kong:"optional,short=v,help='Log debug output to stderr.'"`
}

// Exec runs the command.
func (a App) Exec(_ *kong.Context) error {
	if a.Verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		log.SetLogger(logger)
	}

	width, height := a.Width, a.Height
	if a.Format == "term" {
		width, height = a.Cols*2, a.Rows*4
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("output size must be positive, got %dx%d", width, height)
	}

	params, mapSRS, err := a.parameters()
	if err != nil {
		return err
	}
	e := &renderer.Element{Name: filepath.Base(a.Input), URL: a.Input, Renderization: renderer.GetXmlNode(params)}
	r, err := renderer.NewDefaultRegistry(renderer.DefaultOptions()).Create(renderer.VectorRendererName, e, nil)
	if err != nil {
		return err
	}

	w := world.New(mapSRS)
	w.SetViewport(width, height)
	box, ok := r.BoundingBox(w)
	if !ok {
		return fmt.Errorf("cannot compute the extent of %s in %s", a.Input, mapSRS)
	}
	box = fit(box, width, height)
	w.SetWorld(box)
	w.SetWindow(box)

	out := io.Writer(os.Stdout)
	if a.Output != "" {
		f, err := os.Create(a.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch a.Format {
	case "svg":
		c := canvas.NewSVG(out, width, height)
		rendered := r.Render(w, c, nil)
		c.End()
		return renderError(rendered)
	case "term":
		c := canvas.NewBraille(a.Cols, a.Rows)
		if err := renderError(r.Render(w, c, nil)); err != nil {
			return err
		}
		_, err := fmt.Fprintln(out, c.String())
		return err
	default:
		c := canvas.NewRGBA(width, height)
		if err := renderError(r.Render(w, c, nil)); err != nil {
			return err
		}
		return c.EncodePNG(out)
	}
}

// parameters reads the dataset once to configure every layer, and returns the
// map SRS.
func (a App) parameters() (renderer.Parameters, string, error) {
	v, err := vector.Open(a.Input, vector.ReadOnly)
	if err != nil {
		return renderer.Parameters{}, "", err
	}
	defer func() { _ = v.Close() }()

	p := renderer.NewParameters()
	p.ActiveLayer = a.Layer
	p.AttributeFilter = a.Filter
	for i := 0; i < v.LayerCount(); i++ {
		s := defaultStyle(v.LayerType(i)).String()
		if i < len(a.Styles) && a.Styles[i] != "" {
			s = a.Styles[i]
		}
		p.LayerStyles[i] = s
		p.LayerSRS[i] = v.LayerSR(i)
	}

	mapSRS := a.SRS
	if mapSRS == "" {
		first := 0
		if a.Layer >= 0 {
			first = a.Layer
		}
		mapSRS = v.LayerSR(first)
	}
	log.Debug("dataset configured", zap.String("url", a.Input), zap.Int("layers", v.LayerCount()), zap.String("srs", mapSRS))
	return p, mapSRS, nil
}

func defaultStyle(t vector.GeometryType) *style.VectorStyle {
	switch t {
	case vector.GeometryPoint:
		return style.DefaultPointStyle()
	case vector.GeometryLine:
		return style.DefaultLineStyle()
	case vector.GeometryCollection:
		return style.Merge(style.DefaultPolygonStyle(), style.DefaultPointStyle())
	}
	return style.DefaultPolygonStyle()
}

// fit grows box so it has the aspect ratio of the viewport, keeping its
// center.
func fit(box world.Subset, width, height int) world.Subset {
	e := world.NewExtent(box)
	bw, bh := e.Width(), e.Height()
	if bw == 0 && bh == 0 {
		e = e.Expand(1)
		bw, bh = e.Width(), e.Height()
	}
	aspect := float64(width) / float64(height)
	cx, cy := (e.Min.X+e.Max.X)/2, (e.Min.Y+e.Max.Y)/2
	if bw/aspect > bh {
		bh = bw / aspect
	} else {
		bw = bh * aspect
	}
	// a small margin keeps edge features off the border
	bw, bh = bw*1.05, bh*1.05
	return world.NewSubset(cx-bw/2, cy+bh/2, cx+bw/2, cy-bh/2)
}

func renderError(ok bool) error {
	if !ok {
		return fmt.Errorf("rendering failed, run with --verbose for details")
	}
	return nil
}
