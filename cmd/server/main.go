package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"carevault/internal/config"
	"carevault/internal/integrity"
	"carevault/internal/store"
	"carevault/pkg/db"
	"carevault/pkg/httpx"
	"carevault/pkg/ledger"
	"carevault/pkg/ledger/ethereum"
	"carevault/pkg/ledger/fabric"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// app bundles the shared dependencies the route files close over.
type app struct {
	cfg          config.Config
	log          zerolog.Logger
	store        *store.Store
	integrity    *store.IntegrityStore
	coord        *integrity.Coordinator
	adapters     map[ledger.Kind]ledger.Adapter
	loginLimiter *fixedWindowLimiter
}

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	eth, err := ethereum.Open(filepath.Join(cfg.LedgerDataDir, "ethereum"), cfg.EthereumChainID)
	if err != nil {
		log.Fatal().Err(err).Msg("ethereum chain state open failed")
	}
	fab, err := fabric.Open(filepath.Join(cfg.LedgerDataDir, "fabric"), cfg.FabricChannel)
	if err != nil {
		log.Fatal().Err(err).Msg("fabric channel state open failed")
	}
	adapters := map[ledger.Kind]ledger.Adapter{
		ledger.KindEthereum:    eth,
		ledger.KindHyperledger: fab,
	}

	a := &app{
		cfg:          cfg,
		log:          log,
		store:        st,
		integrity:    store.NewIntegrityStore(st),
		adapters:     adapters,
		loginLimiter: newFixedWindowLimiter(cfg.LoginRatePerMinute, time.Minute),
	}
	a.coord = integrity.NewCoordinator(a.integrity, adapters)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.ConfirmSchedule, func() {
		n, err := a.coord.ConfirmPending(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("pending confirmation sweep failed")
			return
		}
		if n > 0 {
			log.Info().Int("transitioned", n).Msg("pending confirmation sweep")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ConfirmSchedule).Msg("bad sweep schedule")
	}
	sweeper.Start()
	defer sweeper.Stop()

	r := chi.NewRouter()
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/api", func(api chi.Router) {
		a.registerAuthRoutes(api)

		api.Group(func(priv chi.Router) {
			priv.Use(a.authRequired)
			a.registerPatientRoutes(priv)
			a.registerDoctorRoutes(priv)
			a.registerRecordRoutes(priv)
			a.registerAppointmentRoutes(priv)
			a.registerInsightRoutes(priv)
			a.registerLedgerRoutes(priv)
			a.registerNotificationRoutes(priv)
			a.registerAnalyticsRoutes(priv)
		})
	})

	log.Info().Str("port", cfg.Port).Msg("listening")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.DevLogging {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// handleIdempotentMutation replays a stored response when the request
// carries an Idempotency-Key already seen for this actor and endpoint,
// and otherwise runs the mutation and stores its response.
func (a *app) handleIdempotentMutation(r *http.Request, w http.ResponseWriter, scopeID, actorID, endpoint string, run func() (int, map[string]any, error)) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		rec, err := a.store.GetIdempotencyRecord(r.Context(), scopeID, actorID, key, endpoint)
		if err != nil {
			httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
			return
		}
		if rec != nil {
			w.Header().Set("content-type", "application/json")
			w.WriteHeader(rec.ResponseStatus)
			_, _ = w.Write(rec.ResponseBody)
			return
		}
	}

	status, body, err := run()
	if err != nil {
		httpx.WriteError(w, status, errorCodeForStatus(status), err.Error(), nil)
		return
	}

	if key != "" {
		buf := bytes.Buffer{}
		_ = json.NewEncoder(&buf).Encode(body)
		_ = a.store.SaveIdempotencyRecord(r.Context(), store.IdempotencyRecord{
			ScopeID:        scopeID,
			ActorID:        actorID,
			IdempotencyKey: key,
			Endpoint:       endpoint,
			ResponseStatus: status,
			ResponseBody:   bytes.TrimSpace(buf.Bytes()),
		})
	}
	httpx.WriteJSON(w, status, body)
}

func errorCodeForStatus(status int) string {
	switch status {
	case 400:
		return "BAD_REQUEST"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 409:
		return "CONFLICT"
	case 502:
		return "LEDGER_ERROR"
	default:
		return "DB_ERROR"
	}
}
