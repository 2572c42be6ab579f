package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/parkgate/internal/config"
	"github.com/BrandonDHaskell/parkgate/internal/devicelink"
	"github.com/BrandonDHaskell/parkgate/internal/events"
	"github.com/BrandonDHaskell/parkgate/internal/grpcapi"
	"github.com/BrandonDHaskell/parkgate/internal/httpapi"
	"github.com/BrandonDHaskell/parkgate/internal/logging"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/service"
	"github.com/BrandonDHaskell/parkgate/internal/pkg/clock"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parkgate-kiosk: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With("app", "parkgate-kiosk")

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	// Settlement events
	var pub service.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		pub = events.NewNATSPublisher(nc, cfg.NATSSubject)
	}

	// Health
	var health *grpcapi.Server
	if cfg.GRPCAddr != "" {
		health = grpcapi.NewServer(cfg.GRPCAddr, logger)
	}

	// Lane
	proc := service.NewProcessor(stores.Records, stores.Settlements, pub, clock.NewRealClock(),
		service.ProcessorConfig{
			RatePerHour:       cfg.RatePerHour,
			SettlementTimeout: cfg.SettlementTimeout,
		}, logger)

	laneCfg := service.LaneConfig{
		ResetDelay:      cfg.ResetDelay,
		IdleReadTimeout: cfg.IdleReadTimeout,
		ReconnectDelay:  cfg.ReconnectDelay,
	}
	if health != nil {
		laneCfg.OnLinkState = health.SetLinkUp
	}
	lane := service.NewLane(proc, linkOpener(cfg, logger), laneCfg, logger)

	pruner := service.NewSettlementPruner(stores.Settlements, service.PrunerConfig{
		RetentionDays: cfg.AuditRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        cfg.HTTPAddr,
		Records:     stores.Records,
		Settlements: stores.Settlements,
		LinkUp:      lane.LinkUp,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return lane.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if health != nil {
		g.Go(func() error {
			if err := health.Start(); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if health != nil {
			health.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("parkgate kiosk started",
		"store", cfg.Store,
		"link", cfg.Link,
		"rate_per_hour", cfg.RatePerHour,
		"settlement_timeout", cfg.SettlementTimeout)

	err = g.Wait()
	logger.Info("parkgate kiosk stopped")
	return err
}

func linkOpener(cfg config.Config, logger *slog.Logger) service.LinkOpener {
	if cfg.Link == config.LinkTCP {
		return func(ctx context.Context) (service.LaneLink, error) {
			l, err := devicelink.DialTCP(ctx, cfg.TCPAddr, logger)
			if err != nil {
				return nil, err
			}
			return l, nil
		}
	}
	return func(context.Context) (service.LaneLink, error) {
		l, err := devicelink.OpenSerial(cfg.SerialPort, cfg.BaudRate, logger)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}
