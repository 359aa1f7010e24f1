package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/locomotion/internal/core/locomotion/controller"
	"github.com/zeusync/locomotion/internal/core/observability/log"
	"github.com/zeusync/locomotion/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	dump := flag.Bool("dump-config", false, "print the effective config and exit")
	flag.Parse()

	app, err := injector.InitializeApp(injector.ConfigPath(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing:", err)
		os.Exit(1)
	}
	defer func() { _ = app.Logger.Sync() }()

	if *dump {
		out, err := app.Config.Dump()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error dumping config:", err)
			os.Exit(1)
		}
		fmt.Print(string(out))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tick := time.Second / time.Duration(app.Config.Telemetry.TickRate)
	inputs := make(chan controller.Input, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Server.Run(gctx) })
	g.Go(func() error { return app.Simulation.Run(gctx, inputs, tick) })
	g.Go(func() error { return drive(gctx, inputs, tick) })

	app.Logger.Info("locomotion server started",
		log.Stringer("character", app.Simulation.ID()),
		log.String("http", app.Config.Telemetry.HTTPAddr),
		log.String("quic", app.Config.Telemetry.QUICAddr))

	if err := g.Wait(); err != nil {
		app.Logger.Error("server stopped with error", log.Error(err))
		os.Exit(1)
	}
}

// drive feeds a scripted walk: a slow circle that breaks into a run and hops
// now and then, so telemetry clients have something to watch.
func drive(ctx context.Context, inputs chan<- controller.Input, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			in := script(now.Sub(start).Seconds())
			select {
			case inputs <- in:
			default:
			}
		}
	}
}

func script(t float64) controller.Input {
	phase := math.Mod(t, 12)
	if phase < 1 {
		return controller.Input{TurnInPlace: true, CameraYaw: 0.25 * t}
	}
	return controller.Input{
		Move:      mgl64.Vec2{0, 1},
		Run:       phase >= 6 && phase < 9,
		Jump:      phase >= 10 && phase < 10.2,
		CameraYaw: 0.25 * t,
	}
}
