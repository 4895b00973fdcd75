// Command aprs-server hosts a single multi-world coordination room: it
// loads a seed, restores any persisted state from a previous run, and
// serves the WebSocket protocol until terminated.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/archipelago-mw/aprs-server/internal/acceptor"
	"github.com/archipelago-mw/aprs-server/internal/config"
	"github.com/archipelago-mw/aprs-server/internal/persistence"
	"github.com/archipelago-mw/aprs-server/internal/router"
	"github.com/archipelago-mw/aprs-server/internal/runtimeEnv"
	"github.com/archipelago-mw/aprs-server/internal/seed"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/storage"
	"github.com/archipelago-mw/aprs-server/pkg/log"
	"github.com/google/gops/agent"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	log.SetLogLevel(cfg.LogLevel)
	log.SetLogDateTime(cfg.LogDate)

	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	blob, err := os.ReadFile(cfg.SeedPath)
	if err != nil {
		log.Fatalf("reading seed %s: %s", cfg.SeedPath, err.Error())
	}
	world, err := seed.Load(blob)
	if err != nil {
		log.Fatalf("loading seed %s: %s", cfg.SeedPath, err.Error())
	}
	log.Infof("loaded seed %q (%d slots)", world.SeedName, len(world.SlotInfo))

	if cfg.LoadOnly {
		log.Info("load-only: seed is valid, exiting")
		return
	}
	cfg.Router.GeneratorVersion = world.GeneratorVersion

	eng := storage.New()
	slots := slotstate.NewTable(world.Locations)
	if found, err := persistence.TryLoad(cfg.StatePath, eng, slots); err != nil {
		log.Fatalf("loading persisted state %s: %s", cfg.StatePath, err.Error())
	} else if found {
		log.Infof("restored persisted state from %s", cfg.StatePath)
	}

	save := func(eng *storage.Engine, slots *slotstate.Table) error {
		return persistence.Save(cfg.StatePath, eng, slots)
	}
	r := router.New(world, eng, slots, cfg.Router, save)

	srv := acceptor.New(world, r, cfg.Router, acceptor.Config{
		Addr:         cfg.Addr,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ctx); err != nil {
			log.Errorf("server stopped: %s", err.Error())
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	runtimeEnv.SystemdNotifiy(true, "running")
	<-sigs
	runtimeEnv.SystemdNotifiy(false, "shutting down")
	cancel()
	wg.Wait()
	log.Info("shutdown complete")
}
