package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ledd/internal/config"
	"github.com/dokzlo13/ledd/internal/engine"
)

// HealthService provides HTTP health check endpoints plus a read-only LED
// status snapshot.
type HealthService struct {
	cfg      *config.Config
	services *Services
	server   *http.Server
}

type ledStatus struct {
	ID         int     `json:"id"`
	Name       string  `json:"name,omitempty"`
	Percent    uint8   `json:"percent"`
	On         bool    `json:"on"`
	RemainTick uint32  `json:"remain_tick"`
	Phase      float64 `json:"phase"`
	Expired    bool    `json:"expired"`
	Latched    bool    `json:"latched"`
}

// NewHealthService creates a new HealthService.
func NewHealthService(cfg *config.Config, services *Services) *HealthService {
	return &HealthService{
		cfg:      cfg,
		services: services,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.Host, s.cfg.Healthcheck.Port)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	mux.HandleFunc("/leds", func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := s.snapshot(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			log.Error().Err(err).Msg("Failed to encode led snapshot")
		}
	})

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}

// snapshot reads the status of every configured LED through the Lua worker.
func (s *HealthService) snapshot(ctx context.Context) ([]ledStatus, error) {
	ids := make([]int, 0, len(s.services.Backends))
	for id := range s.services.Backends {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]ledStatus, 0, len(ids))
	for _, id := range ids {
		st, err := s.services.Lua.ReadStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ledStatus{
			ID:         id,
			Name:       s.services.Names[id],
			Percent:    st.Percent,
			On:         st.On,
			RemainTick: st.RemainTick,
			Phase:      st.Phase,
			Expired:    st.Expired,
			Latched:    st.NextTick == engine.Forever,
		})
	}
	return out, nil
}
