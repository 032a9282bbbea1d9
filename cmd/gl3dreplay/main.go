// cmd/gl3dreplay/main.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// gl3dreplay renders recorded frame dumps with the 3D renderer and
// optionally writes each captured frame as a PNG.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ndsemu/gl3d/gl3d"
	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/log"
	"github.com/ndsemu/gl3d/renderer"
	"github.com/ndsemu/gl3d/util"

	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"
)

var (
	configFile = flag.String("config", "", "YAML renderer configuration file")
	backend    = flag.String("backend", "soft", "rendering device: soft or gl")
	scale      = flag.Int("scale", 1, "internal resolution scale factor")
	antialias  = flag.Bool("aa", false, "render at twice the resolution and downsample")
	outDir     = flag.String("o", "", "directory to write captured frames to as PNGs")
	commandDir = flag.String("commands", "", "directory to write per-dump command buffer listings to")
	nWorkers   = flag.Int("nworkers", 0, "number of dumps to replay concurrently with the software device (0: one per CPU)")
	logLevel   = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir     = flag.String("logdir", "", "log file directory")
	quiet      = flag.Bool("quiet", false, "don't show a progress bar")
	cpuProfile = flag.String("cpuprofile", "", "write a CPU profile of the replay to the given file")
	memProfile = flag.String("memprofile", "", "write a heap profile at exit to the given file")
)

func init() {
	// GL calls must all come from the thread that created the context.
	runtime.LockOSThread()
}

func main() {
	flag.Parse()

	lg := log.New(*logLevel, *logDir)
	defer lg.CatchAndReportCrash()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: gl3dreplay [flags] dump-or-directory...\nwhere [flags] may be:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		lg.Info("CPU", slog.String("model", info[0].ModelName), slog.Int("sockets", len(info)),
			slog.Int("cores", int(info[0].Cores)))
	}

	files, err := findDumps(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, dir := range []string{*outDir, *commandDir} {
		if dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
	}

	rp := &replayer{
		cfg:        cfg,
		lg:         lg,
		outDir:     *outDir,
		commandDir: *commandDir,
	}
	if !*quiet {
		rp.bar = progressbar.Default(int64(len(files)), "replaying")
	}

	prof, err := util.StartProfiling(*cpuProfile, *memProfile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch *backend {
	case "soft":
		err = rp.replaySoftware(files)
	case "gl":
		err = rp.replayGL(files)
	default:
		err = fmt.Errorf("%s: unknown backend", *backend)
	}
	if rp.bar != nil {
		rp.bar.Close()
	}
	if perr := prof.Stop(); perr != nil {
		lg.Errorf("%v", perr)
	}
	if err != nil {
		lg.Errorf("%v", err)
		os.Exit(1)
	}

	lg.Info("Replay finished", slog.Int("dumps", len(files)), slog.Int("frames", rp.frames),
		slog.Any("stats", rp.stats))
	fmt.Printf("%d frames from %d dumps: %s\n", rp.frames, len(files), rp.stats.String())
}

// loadConfig reads the configuration file, if any, and applies the
// command-line flags that were given explicitly on top of it.
func loadConfig() (gl3d.Config, error) {
	cfg := gl3d.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = gl3d.LoadConfig(*configFile); err != nil {
			return cfg, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scale":
			cfg.ScaleFactor = *scale
		case "aa":
			cfg.Antialias = *antialias
		}
	})
	return cfg, cfg.Validate()
}

// findDumps expands directories in paths to the frame dumps they contain.
func findDumps(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, gpu3d.DumpFileExtension) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no frame dumps found")
	}
	return files, nil
}

type replayer struct {
	cfg        gl3d.Config
	lg         *log.Logger
	outDir     string
	commandDir string
	bar        *progressbar.ProgressBar

	mu     sync.Mutex
	stats  renderer.RendererStats
	frames int
}

// replaySoftware replays the dumps concurrently, each worker with its own
// software device.
func (rp *replayer) replaySoftware(files []string) error {
	n := *nWorkers
	if n <= 0 {
		if n, _ = cpu.Counts(true); n <= 0 {
			n = runtime.NumCPU()
		}
	}

	ch := make(chan string, len(files))
	for _, f := range files {
		ch <- f
	}
	close(ch)

	var eg errgroup.Group
	for range min(n, len(files)) {
		r, err := gl3d.New(renderer.NewSoftwareRenderer(rp.lg), rp.cfg, rp.lg)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			defer r.Dispose()

			for path := range ch {
				if err := rp.replayFile(r, path); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// replayGL replays the dumps one after another on the main thread.
func (rp *replayer) replayGL(files []string) error {
	dev, cleanup, err := newGLDevice(rp.lg)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := gl3d.New(dev, rp.cfg, rp.lg)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := rp.replayFile(r, path); err != nil {
			return err
		}
	}
	return nil
}

func (rp *replayer) replayFile(r *gl3d.Renderer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dr, err := gpu3d.NewDumpReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer dr.Close()

	base := strings.TrimSuffix(filepath.Base(path), gpu3d.DumpFileExtension)
	if rp.commandDir != "" {
		cf, err := os.Create(filepath.Join(rp.commandDir, base+".commands.txt"))
		if err != nil {
			return err
		}
		defer cf.Close()
		r.SetCommandDump(cf)
		defer r.SetCommandDump(nil)
	}

	var stats renderer.RendererStats
	n := 0
	for ; ; n++ {
		frame, err := dr.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return fmt.Errorf("%s: frame %d: %w", path, n, err)
		}
		var e util.ErrorLogger
		e.Push(fmt.Sprintf("%s: frame %d", path, n))
		frame.CheckErrors(&e)
		if e.HaveErrors() {
			e.PrintErrors(rp.lg)
			return e.Err()
		}

		s, err := r.RenderFrame(frame)
		if err != nil {
			return fmt.Errorf("%s: frame %d: %w", path, n, err)
		}
		stats.Merge(s)

		if rp.outDir != "" {
			r.PrepareCaptureFrame()
			fn := filepath.Join(rp.outDir, fmt.Sprintf("%s-%04d.png", base, n))
			if err := writePNG(fn, captureImage(r)); err != nil {
				return err
			}
		}
	}

	rp.lg.Info("Replayed dump", slog.String("path", path), slog.Int("frames", n), slog.Any("stats", stats))

	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.stats.Merge(stats)
	rp.frames += n
	if rp.bar != nil {
		rp.bar.Add(1)
	}
	return nil
}

// captureImage expands the captured frame's 6-bit color and 5-bit alpha
// to 8 bits per channel.
func captureImage(r *gl3d.Renderer) *image.NRGBA {
	c6 := func(v uint32) uint8 {
		v &= 0x3F
		return uint8(v<<2 | v>>4)
	}

	img := image.NewNRGBA(image.Rect(0, 0, gpu3d.ScreenWidth, gpu3d.ScreenHeight))
	for y := range gpu3d.ScreenHeight {
		for x, p := range r.GetLine(y) {
			img.SetNRGBA(x, y, color.NRGBA{
				R: c6(p >> 16),
				G: c6(p >> 8),
				B: c6(p),
				A: uint8(((p >> 24) & 0x1F) * 255 / 31),
			})
		}
	}
	return img
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
