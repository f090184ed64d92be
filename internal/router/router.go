package router

import (
	"database/sql"
	"net/http"
	"os"

	mem "prescription-share/internal/adapters/storage/memory"
	pg "prescription-share/internal/adapters/storage/postgres"
	"prescription-share/internal/domain/prescriptions"
	"prescription-share/internal/domain/sharegrants"
	"prescription-share/internal/middleware"
	"prescription-share/internal/platform/changefeed"
	"prescription-share/internal/platform/logger"
	"prescription-share/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	Logger logger.Logger // puede ser nil

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// BaseURL del visor público para armar share URLs (SHARE_BASE_URL si vacío).
	ShareBaseURL string
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log := opts.Logger
	if log == nil {
		log = logger.NewFromEnv()
	}

	var (
		prescriptionsRepo prescriptions.Repository
		grantsRepo        sharegrants.Repository
		eventsRepo        sharegrants.EventsRepository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("postgres unavailable, falling back to memory", map[string]any{"error": err.Error()})
			}
		}
	}

	if db != nil {
		prescriptionsRepo = pg.NewPrescriptionsRepo(db)
		grantsRepo = pg.NewShareGrantsRepo(db)
		eventsRepo = pg.NewChangeEventsRepo(db)
	} else {
		prescriptionsRepo = mem.NewPrescriptionsRepo()
		grantsRepo = mem.NewShareGrantsRepo()
		eventsRepo = mem.NewChangeEventsRepo()
	}

	// Change feed: hub compartido por médicos y pacientes
	hub := changefeed.NewHub(log.With(map[string]any{"component": "changefeed"}))
	notifier := changefeed.NewGrantNotifier(hub)

	baseURL := opts.ShareBaseURL
	if baseURL == "" {
		baseURL = os.Getenv("SHARE_BASE_URL")
	}

	// Services por módulo
	prescriptionsSvc := prescriptions.NewService(prescriptionsRepo)
	grantsSvc := sharegrants.NewService(grantsRepo, eventsRepo, notifier, sharegrants.Options{
		BaseURL:     baseURL,
		QRRenderURL: os.Getenv("QR_RENDER_URL"),
	})

	// Rutas por módulo
	prescriptions.RegisterRoutes(r, prescriptionsSvc)
	sharegrants.RegisterRoutes(r, grantsSvc, prescriptionsSvc)

	r.Get("/ws", changefeed.Handler(hub))

	return r
}
