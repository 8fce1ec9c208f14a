// Command copytrader runs the streaming copy-trading engine. It wires
// configuration, the external collaborators, the trade engine, the
// stream supervisor, the background scheduler and the admin API
// together, then blocks until it receives an interrupt.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"copytrader/internal/adminapi"
	"copytrader/internal/audit"
	"copytrader/internal/config"
	"copytrader/internal/decode"
	"copytrader/internal/engine"
	"copytrader/internal/external"
	"copytrader/internal/external/solanarpc"
	"copytrader/internal/logger"
	"copytrader/internal/model"
	"copytrader/internal/scheduler"
	"copytrader/internal/stream"
)

var log = logger.New("MAIN")

func main() {
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	if len(os.Args) < 3 || os.Args[1] != "run" {
		usage()
		os.Exit(1)
	}
	runCmd.Parse(os.Args[3:])

	mode := os.Args[2]
	switch mode {
	case "new-token":
	case "copy":
	default:
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("config: %v", err)
		os.Exit(1)
	}

	if err := run(mode, cfg); err != nil {
		log.Error("fatal: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: copytrader run <new-token|copy>")
}

// run wires every component and blocks until ctx is cancelled by an
// interrupt or the stream supervisor exits irrecoverably.
func run(mode string, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLog, err := openAuditLog(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	rpc := solanarpc.New(cfg.Stream.Endpoint)
	eng := engine.New(cfg, &unimplementedSwapBuilder{}, &unimplementedTxSubmitter{}, rpc, &unimplementedPriceFeed{}, auditLog)

	sup := stream.New(stream.Config{
		Endpoint:       cfg.Stream.Endpoint,
		Token:          cfg.Stream.Token,
		AccountInclude: cfg.Stream.LeaderAddresses,
		AccountExclude: cfg.Stream.ExcludeProgramIDs,
	})

	cls := decode.Classify{ExcludeProgramID: cfg.Stream.ExcludeProgramIDs}
	if len(cfg.Stream.AMMProgramIDs) > 0 {
		cls.PoolProgramID = cfg.Stream.AMMProgramIDs[0]
	}

	sched := &scheduler.Scheduler{
		Heartbeat:        sup.SendPing,
		OnHeartbeatError: func(err error) { log.Error("heartbeat failed, stopping: %v", err); stop() },
		Watchdog:         eng.Watchdog(sup.LastMessageAt),
		ForceSell:        eng.ForceSellSweep,
		PNLTick:          eng.PNLTick,
		HealthBeat:       eng.HealthBeat(sup.LastMessageAt),
	}

	admin := adminapi.New(eng, cfg.Admin.JWTSecret)

	errCh := make(chan error, 2)
	go func() { errCh <- sup.Run(ctx, eng.OnStreamUpdate(ctx, cls)) }()
	go sched.Run(ctx)
	go func() { errCh <- admin.Run(ctx, ":"+cfg.Admin.Port) }()

	log.Printf("copytrader started mode=%s admin_port=%s", mode, cfg.Admin.Port)

	select {
	case <-ctx.Done():
		log.Printf("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("component exited: %v", err)
		}
		stop()
	}

	return nil
}

func openAuditLog(cfg *config.Config) (audit.Log, error) {
	if cfg.Database.DSN == "" {
		return audit.NoOp{}, nil
	}
	return audit.Open(cfg.Database.DSN)
}

// unimplementedSwapBuilder/unimplementedTxSubmitter/unimplementedPriceFeed
// satisfy the external interfaces intentionally left abstract here
// (signing, submission routing, and price discovery are out of scope);
// they return a clear error rather than pretending to trade.
type unimplementedSwapBuilder struct{}

func (unimplementedSwapBuilder) Build(ctx context.Context, mint string, curve *model.CurveReserves, pool *model.PoolReserves, cfg external.SwapConfig) (*external.BuiltSwap, error) {
	return nil, fmt.Errorf("no SwapBuilder configured for this deployment")
}

type unimplementedTxSubmitter struct{}

func (unimplementedTxSubmitter) Submit(ctx context.Context, recentBlockhash string, swap *external.BuiltSwap) ([]string, error) {
	return nil, fmt.Errorf("no TxSubmitter configured for this deployment")
}

type unimplementedPriceFeed struct{}

func (unimplementedPriceFeed) GetTokenPrice(ctx context.Context, mint string) (float64, error) {
	return 0, fmt.Errorf("no PriceFeed configured for this deployment")
}
