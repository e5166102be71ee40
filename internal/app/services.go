package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ledd/internal/backend"
	"github.com/dokzlo13/ledd/internal/config"
	"github.com/dokzlo13/ledd/internal/db"
	"github.com/dokzlo13/ledd/internal/engine"
	"github.com/dokzlo13/ledd/internal/eventbus"
	"github.com/dokzlo13/ledd/internal/ledger"
	"github.com/dokzlo13/ledd/internal/poller"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Effect engine and the hardware behind it
	Engine   *engine.Engine
	Backends map[int]backend.Backend
	Names    map[int]string

	// High-level services
	Lua    *LuaService
	Poller *poller.Poller
	Health *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger
	s.Ledger = ledger.New(database.DB)

	// Initialize event bus
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Initialize effect engine
	curve := engine.TableCurve()
	if cfg.Engine.Curve == "cosine" {
		curve = engine.CosineCurve()
	}
	eng, err := engine.NewWithCurve(cfg.Engine.Capacity, cfg.Engine.Period.Duration(), curve)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Engine = eng

	// Attach one backend per configured LED
	s.Backends = make(map[int]backend.Backend)
	s.Names = make(map[int]string)
	for _, ledCfg := range cfg.Leds {
		b, err := backend.New(ledCfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("led %d: %w", ledCfg.ID, err)
		}
		s.Backends[ledCfg.ID] = b
		s.Names[ledCfg.ID] = ledCfg.Name

		if err := eng.Init(ledCfg.ID, b.Set); err != nil {
			s.Close()
			return nil, fmt.Errorf("led %d: %w", ledCfg.ID, err)
		}

		id, name := ledCfg.ID, ledCfg.Name
		if err := eng.OnExpire(id, func() {
			s.Bus.Publish(eventbus.Event{
				Type: eventbus.EventTypeEffectExpired,
				Data: map[string]interface{}{
					"led_id": id,
					"name":   name,
				},
			})
		}); err != nil {
			s.Close()
			return nil, fmt.Errorf("led %d: %w", id, err)
		}
	}

	// Initialize Lua service
	s.Lua = NewLuaService(cfg, eng, s.Bus)

	// Initialize poller - ticks are handed to the Lua worker so that polling
	// and scripts never run concurrently
	s.Poller = poller.New(cfg.Engine.Period.Duration(), func(ctx context.Context) bool {
		return s.Lua.Do(ctx, func(context.Context) {
			eng.Poll()
		})
	})

	// Initialize health service
	s.Health = NewHealthService(cfg, s)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	s.registerEventHandlers(ctx)

	// Load Lua script before starting worker
	if err := s.Lua.LoadScript(); err != nil {
		return err
	}

	// Start all background services
	s.Lua.Start(ctx)
	go s.Poller.Run(ctx)
	s.Health.Start(ctx)
	go s.runLedgerCleanup(ctx)

	return nil
}

// registerEventHandlers wires bus events into the ledger and into Lua expiry
// handlers.
func (s *Services) registerEventHandlers(ctx context.Context) {
	s.Bus.Subscribe(eventbus.EventTypeEffectWritten, func(ev eventbus.Event) {
		id, _ := ev.Data["led_id"].(int)
		mode, _ := ev.Data["mode"].(string)
		if err := s.Ledger.Append(ledger.EventEffectWritten, ev.ID, id, mode, ev.Data); err != nil {
			log.Error().Err(err).Msg("Failed to record effect write")
		}
	})

	s.Bus.Subscribe(eventbus.EventTypeEffectExpired, func(ev eventbus.Event) {
		id, _ := ev.Data["led_id"].(int)

		if err := s.Ledger.Append(ledger.EventEffectExpired, ev.ID, id, "", ev.Data); err != nil {
			log.Error().Err(err).Msg("Failed to record effect expiry")
		}

		// Expiry handlers run on the Lua worker, same as every other script call
		s.Lua.Do(ctx, func(context.Context) {
			s.Lua.Runtime.LedModule().HandleExpiry(s.Lua.Runtime.State(), id)
		})
	})
}

// runLedgerCleanup deletes old ledger entries on a fixed interval.
func (s *Services) runLedgerCleanup(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Ledger cleanup done")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(ctx)
		cancel()
	}
	for id, b := range s.Backends {
		b.Set(0)
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Int("led", id).Msg("Backend close failed")
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
