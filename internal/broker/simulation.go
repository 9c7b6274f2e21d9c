package broker

import (
	"marketReplay/config"
	"marketReplay/internal/clock"
	"marketReplay/internal/ledger"
	"marketReplay/internal/ports"
	"marketReplay/internal/store"
	"marketReplay/internal/trigger"
)

// Simulation is the state of one run. Every component of the kernel is
// created here and shares nothing with other simulations, so independent
// runs may live side by side.
type Simulation struct {
	Config config.KernelConfig

	Accounts  *store.AccountStore
	Positions *store.PositionStore
	Triggers  *store.TriggerStore
	Timeline  *clock.Timeline

	PositionService *ledger.PositionService
	AccountService  *ledger.AccountService
	Engine          *trigger.Engine

	Logger ports.Logger
}

// NewSimulation wires a fresh simulation from cfg. Zero settings fall back
// to the kernel defaults.
func NewSimulation(cfg config.KernelConfig, logger ports.Logger) *Simulation {
	defaults := config.DefaultKernelConfig()
	if cfg.StartingCash <= 0 {
		cfg.StartingCash = defaults.StartingCash
	}
	if cfg.PriceLineStep <= 0 {
		cfg.PriceLineStep = defaults.PriceLineStep
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.MaxSearchIterations <= 0 {
		cfg.MaxSearchIterations = defaults.MaxSearchIterations
	}

	sim := &Simulation{
		Config:    cfg,
		Accounts:  store.NewAccountStore(),
		Positions: store.NewPositionStore(),
		Triggers:  store.NewTriggerStore(cfg.PriceLineStep),
		Timeline:  clock.NewTimeline(cfg.MaxSearchIterations),
		Logger:    logger,
	}
	sim.PositionService = ledger.NewPositionService(sim.Triggers, logger)
	sim.AccountService = ledger.NewAccountService(sim.Accounts, sim.Positions, sim.PositionService, logger)
	sim.Engine = trigger.NewEngine(sim.Positions, sim.Triggers, sim.AccountService, logger)
	return sim
}
