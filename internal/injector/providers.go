package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/locomotion/internal/core/events/bus"
	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/locomotion/sim"
	"github.com/zeusync/locomotion/internal/core/locomotion/terrain"
	"github.com/zeusync/locomotion/internal/core/observability/log"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
	"github.com/zeusync/locomotion/internal/server"
)

// ConfigPath is the optional YAML file layered under environment overrides.
type ConfigPath string

// App is the fully wired host process.
type App struct {
	Config     config.Config
	Logger     *log.Logger
	Simulation *sim.Simulation
	Server     *server.Server
}

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideBus,
	ProvideGround,
	ProvideSimulation,
	ProvideServer,
	NewApp,
)

func ProvideConfig(path ConfigPath) (config.Config, error) {
	cfg, err := config.LoadFile(string(path))
	if err != nil {
		return config.Config{}, err
	}
	return config.ApplyEnv(cfg)
}

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.Telemetry.LogLevel))
}

func ProvideBus(logger *log.Logger) bus.EventBus {
	b := bus.New()
	b.AddObserver(bus.LogObserver{Logger: logger.With(log.String("component", "bus"))})
	return b
}

// ProvideGround is the demo terrain: rolling hills behind a kinematic mover.
func ProvideGround() physics.GroundProvider {
	return terrain.NewKinematic(terrain.Hills(0.15, 8))
}

func ProvideSimulation(cfg config.Config, ground physics.GroundProvider, b bus.EventBus, logger *log.Logger) (*sim.Simulation, error) {
	return sim.New(cfg, ground, sim.WithBus(b), sim.WithLogger(logger))
}

func ProvideServer(cfg config.Config, s *sim.Simulation, logger *log.Logger) (*server.Server, error) {
	return server.NewServer(cfg.Telemetry, s, logger)
}

// NewApp connects the telemetry sinks to the simulation.
func NewApp(cfg config.Config, logger *log.Logger, s *sim.Simulation, srv *server.Server) *App {
	for _, sink := range srv.Sinks() {
		s.AddSink(sink)
	}
	return &App{Config: cfg, Logger: logger, Simulation: s, Server: srv}
}
