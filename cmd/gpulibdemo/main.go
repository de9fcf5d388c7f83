// Command gpulibdemo renders the gpulib examples headlessly on the
// software device.
//
// Usage:
//
//	gpulibdemo [-config demo.toml] [-output dir] [-width w] [-height h] [-demo triangle,feedback]
//
// The triangle demo writes triangle.png from the default surface, the
// instancing demo writes one PNG per color attachment and the feedback
// demo prints the captured vectors.
package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/sevas/gpulib"
	"github.com/sevas/gpulib/device/soft"
)

var demos = map[string]demo{
	"triangle":   triangle,
	"instancing": instancing,
	"feedback":   feedback,
}

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		output     = flag.String("output", "", "output directory")
		width      = flag.Int("width", 0, "surface and render target width")
		height     = flag.Int("height", 0, "surface and render target height")
		only       = flag.String("demo", "", "comma-separated demos to run")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *output != "" {
		cfg.Output = *output
	}
	if *width > 0 {
		cfg.Width = *width
	}
	if *height > 0 {
		cfg.Height = *height
	}
	if *only != "" {
		cfg.Demos = strings.Split(*only, ",")
	}
	if *verbose {
		cfg.Log = "debug"
	}
	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.level()}))
	gpulib.SetLogger(logger)

	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}
	for _, name := range cfg.Demos {
		if err := run(name, cfg, os.Stdout); err != nil {
			log.Fatalf("%s: %v", name, err)
		}
		logger.Info("demo finished", "demo", name)
	}
}

// run executes one demo on a fresh software device. Presenting the
// default surface writes <name>.png.
func run(name string, cfg Config, out io.Writer) error {
	present := func(img *image.RGBA) {
		path := filepath.Join(cfg.Output, name+".png")
		if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
			slog.Error("save surface", "path", path, "err", err)
		}
	}
	ctx, err := gpulib.NewContext(
		gpulib.WithDevice(soft.New(soft.WithPresentFunc(present))),
		gpulib.WithSurface(gpulib.SurfaceConfig{Title: name, Width: cfg.Width, Height: cfg.Height, Samples: 1}),
		gpulib.WithArenaCapacity(cfg.Arena),
		gpulib.WithDebugFunc(func(m gpulib.Message) {
			fmt.Fprint(os.Stderr, m.String())
		}),
	)
	if err != nil {
		return err
	}
	defer ctx.Close()
	return demos[name](ctx, cfg, out)
}
