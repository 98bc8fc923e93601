package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"

	"github.com/1F47E/go-padreel/internal/alloc"
	"github.com/1F47E/go-padreel/internal/api"
	"github.com/1F47E/go-padreel/internal/capture"
	"github.com/1F47E/go-padreel/internal/core"
	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/internal/storage"
	"github.com/1F47E/go-padreel/internal/synth"
	cfg "github.com/1F47E/go-padreel/pkg/config"
	"github.com/1F47E/go-padreel/pkg/logger"
	"github.com/1F47E/go-padreel/pkg/tui"
)

var generateFlags = []cli.Flag{
	cli.StringFlag{Name: "mode, m", Value: "real", Usage: "real (encode video) or fake (zero buffer)"},
	cli.Float64Flag{Name: "size", Value: cfg.DefaultSizeMB, Usage: "target size in MB"},
	cli.Float64Flag{Name: "duration, d", Value: cfg.DefaultDuration.Seconds(), Usage: "video duration in seconds"},
	cli.IntFlag{Name: "width", Value: cfg.DefaultWidth},
	cli.IntFlag{Name: "height", Value: cfg.DefaultHeight},
	cli.Float64Flag{Name: "fps", Value: cfg.DefaultFrameRate},
	cli.StringSliceFlag{Name: "palette", Usage: "mosaic colors, #rrggbb (repeat or comma separate)"},
	cli.StringFlag{Name: "caption", Usage: "overlay caption, default TEST VIDEO WxH"},
	cli.StringFlag{Name: "out, o", Usage: "output dir, overrides config"},
	cli.BoolFlag{Name: "yes, y", Usage: "confirm large files without asking"},
	cli.BoolFlag{Name: "tui", Usage: "interactive progress"},
	cli.Uint64Flag{Name: "seed", Usage: "deterministic frames, 0 is random"},
	cli.BoolFlag{Name: "fast", Usage: "render frames as fast as the encoder takes them instead of in real time"},
}

var previewFlags = []cli.Flag{
	cli.IntFlag{Name: "width", Value: cfg.DefaultWidth},
	cli.IntFlag{Name: "height", Value: cfg.DefaultHeight},
	cli.StringSliceFlag{Name: "palette"},
	cli.StringFlag{Name: "caption"},
	cli.Uint64Flag{Name: "seed"},
	cli.StringFlag{Name: "out, o", Value: "preview.png"},
}

func loadConfig(c *cli.Context) (cfg.Config, error) {
	conf, err := cfg.Load(c.GlobalString("config"))
	if err != nil {
		return conf, err
	}
	if v := c.GlobalString("log-level"); v != "" {
		conf.Log.Level = v
	}
	if v := c.GlobalString("log-format"); v != "" {
		conf.Log.Format = v
	}
	logger.Configure(conf.Log.Level, conf.Log.Format)
	return conf, nil
}

func newSynth(seed uint64) *synth.Synthesizer {
	if seed == 0 {
		return synth.NewRandom()
	}
	return synth.NewSeeded(seed)
}

func themeFromFlags(c *cli.Context) (synth.Theme, error) {
	palette, err := synth.ParsePalette(c.StringSlice("palette")...)
	if err != nil {
		return synth.Theme{}, err
	}
	return synth.Theme{Palette: palette, Caption: c.String("caption")}, nil
}

func newCore(conf cfg.Config, svc encoder.Service, opts ...core.Option) (*core.Core, error) {
	profile, err := encoder.ProfileByName(conf.Encoder.Profile)
	if err != nil {
		return nil, fmt.Errorf("config encoder.profile %q: %w", conf.Encoder.Profile, err)
	}
	opts = append([]core.Option{
		core.WithProfile(profile),
		core.WithLargeFileThreshold(conf.Fake.LargeFileThreshold),
		core.WithMaxAlloc(conf.Fake.MaxAllocBytes),
	}, opts...)
	return core.NewCore(svc, opts...), nil
}

func generateAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	mode, err := core.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	theme, err := themeFromFlags(c)
	if err != nil {
		return err
	}
	req := core.Request{
		Duration:  time.Duration(c.Float64("duration") * float64(time.Second)),
		Width:     c.Int("width"),
		Height:    c.Int("height"),
		FrameRate: c.Float64("fps"),
		Mode:      mode,
		Theme:     theme,
	}.WithSizeMB(c.Float64("size"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var svc encoder.Service
	if mode == core.ModeReal {
		if svc, err = newService(conf); err != nil {
			return err
		}
	}

	var confirm alloc.Confirmer = stdinConfirmer{in: os.Stdin, out: os.Stderr}
	if c.Bool("yes") {
		confirm = alloc.Always(true)
	}

	// the widget owns stdin, so it only runs for real mode where nothing prompts
	eventsCh := make(chan tui.Event, 128)
	var renderer tui.Renderer = tui.NewPlain(os.Stderr)
	if c.Bool("tui") && mode == core.ModeReal {
		w := tui.NewWidget()
		w.OnQuit = cancel
		go func() {
			if err := w.Run(); err != nil {
				log.Error(err)
			}
		}()
		renderer = w
	}
	ui := tui.New(context.Background(), eventsCh, renderer)
	uiDone := make(chan struct{})
	go func() {
		ui.Run()
		close(uiDone)
	}()
	stopUI := func() {
		close(eventsCh)
		<-uiDone
	}

	opts := []core.Option{
		core.WithSynthesizer(newSynth(c.Uint64("seed"))),
		core.WithObserver(func(st core.State) {
			if st.Phase == core.Generating {
				eventsCh <- tui.NewEventBar(fmt.Sprintf("Generating %s... %d%%", req.FileName("*"), st.Progress), float64(st.Progress)/100)
			}
		}),
	}
	if c.Bool("fast") {
		opts = append(opts, core.WithTicks(capture.Virtual{}))
	}
	if mode == core.ModeFake {
		eventsCh <- tui.NewEventSpin("Allocating...")
	}
	gen, err := newCore(conf, svc, opts...)
	if err != nil {
		stopUI()
		return err
	}

	res, err := gen.Generate(ctx, req, confirm)
	if err != nil {
		stopUI()
		if errors.Is(err, alloc.ErrUserAborted) || errors.Is(err, context.Canceled) {
			log.Info("Aborted")
			return nil
		}
		if msg := gen.State().Message; msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}
	defer res.Dispose()

	outDir := conf.OutDir
	if v := c.String("out"); v != "" {
		outDir = v
	}
	eventsCh <- tui.NewEventSpin("Saving...")
	path, err := gen.Save(res, outDir)
	stopUI()
	if err != nil {
		return err
	}

	if res.Advisory != nil {
		log.Warn(res.Advisory)
	}
	log.Infof("Saved %s", path)
	log.Infof("Size: %s MB (%s bytes), type: %s, padded: %v", res.SizeMB(), humanize.Comma(res.Size), res.Label(), res.Padded)
	log.Debug(res.Meta.Print())
	return nil
}

func serveAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("addr"); v != "" {
		conf.Server.Addr = v
	}
	svc, err := newService(conf)
	if err != nil {
		return err
	}
	if err := svc.Available(context.Background()); err != nil {
		log.Warnf("encoder %s unavailable, only fake mode will work: %v", svc.Name(), err)
	}
	gen, err := newCore(conf, svc)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return api.New(ctx, gen, conf.Server).ListenAndServe(ctx)
}

func previewAction(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}
	theme, err := themeFromFlags(c)
	if err != nil {
		return err
	}
	w, h := c.Int("width"), c.Int("height")
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	newSynth(c.Uint64("seed")).RenderFrame(img, w, h, theme, time.Now())

	out := c.String("out")
	if err := storage.SaveFrame(out, img); err != nil {
		return err
	}
	log.Infof("Preview saved: %s", out)
	return nil
}

func verifyAction(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}
	path := c.Args().Get(0)
	if path == "" {
		return fmt.Errorf("Filename is required")
	}
	target := core.SizeFromMB(c.Float64("size"))

	v, err := core.Verify(path, target)
	if v.Path != "" {
		log.Infof("%s: %s bytes, payload %s bytes, zero tail %s bytes, mock: %v",
			path, humanize.Comma(v.Size), humanize.Comma(v.Payload()), humanize.Comma(v.TrailingZeros), v.Mock)
	}
	if err != nil {
		return err
	}
	if target > 0 {
		log.Info("Size matches target exactly")
	}
	return nil
}

func profilesAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	svc, err := newService(conf)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := svc.Available(ctx); err != nil {
		return fmt.Errorf("encoder %s: %w", svc.Name(), err)
	}
	for _, p := range encoder.Supported(ctx, svc) {
		fmt.Printf("%-10s %-12s .%s\n", p.Name, p.MimeType, p.Ext)
	}
	profile, _ := encoder.ProfileByName(conf.Encoder.Profile)
	if selected, ok := encoder.Select(ctx, svc, profile); ok {
		log.Infof("%s would use %s", svc.Name(), selected)
	} else {
		log.Warnf("%s supports none of the profiles", svc.Name())
	}
	return nil
}
