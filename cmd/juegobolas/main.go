package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sgomezmalagon/juego-bolas/internal/config"
	"github.com/sgomezmalagon/juego-bolas/internal/game"
	"github.com/sgomezmalagon/juego-bolas/internal/journal"
	"github.com/sgomezmalagon/juego-bolas/internal/logging"
	"github.com/sgomezmalagon/juego-bolas/internal/server"
	"github.com/sgomezmalagon/juego-bolas/internal/sim"
	"github.com/sgomezmalagon/juego-bolas/internal/tui"
)

func main() {
	fs := config.Flags()
	hashPw := fs.String("hash-password", "", "print a bcrypt hash for server.passwordHash and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *hashPw != "" {
		h, err := server.HashPassword(*hashPw)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	var logOut io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	} else if cfg.TUI {
		// the terminal belongs to the front-end
		logOut = io.Discard
	}
	log, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return err
	}

	seed := cfg.World.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	world, err := sim.NewWorld(sim.Config{
		Width:               cfg.World.Width,
		Height:              cfg.World.Height,
		Seed:                seed,
		CollisionIterations: cfg.World.CollisionIterations,
	})
	if err != nil {
		return err
	}

	var rec game.Recorder
	var stats server.StatsSource
	if cfg.Journal.Path != "" {
		db, err := journal.OpenDB(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		runID, err := db.StartRun(seed, cfg.World.Width, cfg.World.Height)
		if err != nil {
			return err
		}
		j := journal.New(db, runID, journal.Options{
			FlushInterval: cfg.Journal.FlushInterval,
			BatchSize:     cfg.Journal.BatchSize,
		}, log)
		j.TrackJSON(journal.EvtRunStart, 0, map[string]any{"seed": seed, "w": cfg.World.Width, "h": cfg.World.Height})
		defer func() {
			j.Track(journal.EvtRunEnd, 0, "")
			j.Stop()
			if err := db.EndRun(runID); err != nil {
				log.Error().Err(err).Msg("closing run")
			}
			log.Info().Int64("written", j.Written()).Int64("dropped", j.Dropped()).Msg("journal closed")
		}()
		rec, stats = j, j
		log.Info().Str("path", cfg.Journal.Path).Int64("run", runID).Msg("journal open")
	}

	g, err := game.New(world, game.Options{
		TickRate:      cfg.World.TickRate,
		SpawnInterval: cfg.World.SpawnInterval,
		StatsEvery:    cfg.Journal.StatsEvery,
		Journal:       rec,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer g.Close()
	for range cfg.World.InitialBalls {
		g.AddBall()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.Run(ctx)
	})

	if cfg.Server.Addr != "" {
		auth, err := server.NewAuth(cfg.Server.PasswordHash, cfg.Server.JWTSecret)
		if err != nil {
			stop()
			eg.Wait()
			return err
		}
		hub := server.NewHub(g, auth, server.Options{
			BroadcastRate: cfg.Server.BroadcastRate,
			MaxConnsPerIP: cfg.Server.MaxConnsPerIP,
			MaxConns:      cfg.Server.MaxConns,
			Journal:       rec,
			Stats:         stats,
			Logger:        log,
		})
		srv := server.New(cfg.Server.Addr, hub)
		eg.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if cfg.TUI {
		screen, err := tcell.NewScreen()
		if err != nil {
			stop()
			eg.Wait()
			return fmt.Errorf("terminal: %w", err)
		}
		ui := tui.New(screen, g, log)
		eg.Go(func() error {
			defer stop() // quitting the front-end ends the process
			return ui.Run(ctx)
		})
	}

	log.Info().
		Uint64("seed", seed).
		Str("addr", cfg.Server.Addr).
		Bool("tui", cfg.TUI).
		Msg("juegobolas running")

	err = eg.Wait()
	logShutdown(log, err)
	return err
}

func logShutdown(log zerolog.Logger, err error) {
	if err != nil {
		log.Error().Err(err).Msg("stopped with error")
		return
	}
	log.Info().Msg("shutdown complete")
}
