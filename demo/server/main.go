package main

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/canvas"
	"github.com/tingold/orb-render/log"
	"github.com/tingold/orb-render/renderer"
	"github.com/tingold/orb-render/srs"
	"github.com/tingold/orb-render/style"
	"github.com/tingold/orb-render/vector"
	"github.com/tingold/orb-render/world"
)

type City struct {
	Name       string
	Country    string
	Longitude  float64
	Latitude   float64
	Population int
	Capital    bool
}

var cities = []City{
	{"Tokyo", "Japan", 139.6917, 35.6895, 13960000, true},
	{"New York", "United States", -73.9857, 40.7484, 8336817, false},
	{"London", "United Kingdom", -0.1276, 51.5074, 8982000, true},
	{"Paris", "France", 2.3522, 48.8566, 2161000, true},
	{"Beijing", "China", 116.4074, 39.9042, 21540000, true},
	{"Moscow", "Russia", 37.6173, 55.7558, 12615000, true},
	{"São Paulo", "Brazil", -46.6333, -23.5505, 12300000, false},
	{"Mumbai", "India", 72.8777, 19.0760, 12400000, false},
	{"Los Angeles", "United States", -118.2437, 34.0522, 3971883, false},
	{"Shanghai", "China", 121.4737, 31.2304, 24870000, false},
	{"Istanbul", "Turkey", 28.9784, 41.0082, 15520000, false},
	{"Buenos Aires", "Argentina", -58.3816, -34.6037, 3075646, true},
	{"Cairo", "Egypt", 31.2357, 30.0444, 10230000, true},
	{"Sydney", "Australia", 151.2093, -33.8688, 5312000, false},
	{"Berlin", "Germany", 13.4050, 52.5200, 3669491, true},
}

const cityStyle = `VECTORSTYLE[3,"cities",
	SYMBOL["suri-symbol",1,COLOR[214,39,40,255],SIZE[6]],
	LABEL["suri-label",1,COLOR[32,32,32,255],SIZE[10],ANCHOR[2],EXPRESSION["{name}"]]]`

// writeCities stores the city table as a FlatGeobuf file in dir.
func writeCities(dir string) (string, error) {
	path := filepath.Join(dir, "world_cities.fgb")
	v, err := vector.Open(path, vector.ReadWrite)
	if err != nil {
		return "", err
	}
	ed := vector.NewEditor(v)
	_, err = ed.CreateLayer("world_cities", srs.WGS84, vector.GeometryPoint,
		vector.Field{Name: "name", Type: vector.FieldString},
		vector.Field{Name: "country", Type: vector.FieldString},
		vector.Field{Name: "population", Type: vector.FieldInteger},
		vector.Field{Name: "capital", Type: vector.FieldBool},
	)
	if err != nil {
		_ = v.Close()
		return "", err
	}
	for _, city := range cities {
		_, err := ed.CreateFeature(orb.Point{city.Longitude, city.Latitude}, geojson.Properties{
			"name":       city.Name,
			"country":    city.Country,
			"population": city.Population,
			"capital":    city.Capital,
		})
		if err != nil {
			_ = v.Close()
			return "", err
		}
	}
	return path, v.Close()
}

func intParam(r *http.Request, name string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && n > 0 && n <= 4096 {
		return n
	}
	return def
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log.SetLogger(logger)

	dir, err := os.MkdirTemp("", "vrender-demo")
	if err != nil {
		log.Error("temp dir", zap.Error(err))
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	path, err := writeCities(dir)
	if err != nil {
		log.Error("failed to create FlatGeobuf", zap.Error(err))
		os.Exit(1)
	}
	flatgeobufData, err := os.ReadFile(path)
	if err != nil {
		log.Error("failed to read FlatGeobuf", zap.Error(err))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	opts := renderer.DefaultOptions()
	opts.Metrics = reg

	params := renderer.NewParameters()
	params.LayerStyles[0] = style.Merge(style.MustParse(cityStyle), style.DefaultPointStyle()).String()
	params.LayerSRS[0] = srs.WGS84
	r, err := renderer.NewDefaultRegistry(opts).Create(renderer.VectorRendererName, &renderer.Element{
		Name:          "world_cities",
		URL:           path,
		Renderization: renderer.GetXmlNode(params),
	}, nil)
	if err != nil {
		log.Error("failed to create renderer", zap.Error(err))
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/data.fgb", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write(flatgeobufData)
	})
	mux.HandleFunc("/map.png", func(w http.ResponseWriter, req *http.Request) {
		width, height := intParam(req, "width", 1024), intParam(req, "height", 512)
		wld := world.New(srs.WebMercator)
		wld.SetViewport(width, height)
		// the mercator square, cropped to the viewport aspect
		const half = 20037508.34
		h := half * float64(height) / float64(width)
		wld.SetWindow(world.NewSubset(-half, h, half, -h))
		wld.SetWorld(world.NewSubset(-half, half, half, -half))

		c := canvas.NewRGBA(width, height)
		if !r.Render(wld, c, nil) {
			http.Error(w, "rendering failed", http.StatusInternalServerError)
			return
		}
		var buf bytes.Buffer
		if err := c.EncodePNG(&buf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Info("server starting", zap.String("addr", "http://localhost:8080"))
	if err := http.ListenAndServe(":8080", mux); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}
