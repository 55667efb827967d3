package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dlanger/studyden/internal/handler"
	"github.com/dlanger/studyden/internal/middleware"
	"github.com/dlanger/studyden/internal/push"
	"github.com/dlanger/studyden/internal/store"
	ws "github.com/dlanger/studyden/internal/websocket"
)

// Config carries the pieces of application configuration the HTTP layer needs.
type Config struct {
	JWTSecret       []byte
	TokenTTL        time.Duration
	LoginRateLimit  int
	LoginRatePeriod time.Duration
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string
	ReminderHour    int
}

type Server struct {
	db  *sql.DB
	cfg Config
	hub *ws.Hub

	authH  *handler.AuthHandler
	childH *handler.ChildHandler
	taskH  *handler.TaskHandler
	logH   *handler.LogHandler
	pushH  *handler.PushHandler

	pushStore     *store.PushStore
	pushService   *push.Service
	pushScheduler *push.Scheduler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	childStore := store.NewChildStore(db)
	taskStore := store.NewTaskStore(db)
	logStore := store.NewStudyLogStore(db)
	pushStore := store.NewPushStore(db)

	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushSubscriber)
		pushSched = push.NewScheduler(pushSvc, pushStore, childStore, taskStore, logStore, cfg.ReminderHour, logger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	return &Server{
		db:            db,
		cfg:           cfg,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, cfg.JWTSecret, cfg.TokenTTL, logger.With("component", "auth")),
		childH:        handler.NewChildHandler(childStore, hub, logger.With("component", "child")),
		taskH:         handler.NewTaskHandler(taskStore, childStore, hub, logger.With("component", "task")),
		logH:          handler.NewLogHandler(logStore, taskStore, childStore, hub, logger.With("component", "log")),
		pushH:         pushH,
		pushStore:     pushStore,
		pushService:   pushSvc,
		pushScheduler: pushSched,
		rateLimiter:   middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRatePeriod),
		logger:        logger,
	}
}

// PushScheduler returns the reminder scheduler, nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// RateLimiter returns the login rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /register", s.rateLimiter.Limit(s.authH.Register))
	outerMux.HandleFunc("POST /login", s.rateLimiter.Limit(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else requires a bearer token.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.cfg.JWTSecret)
	outerMux.Handle("/api/", authMiddleware(protectedMux))
	outerMux.Handle("GET /ws", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Children
	mux.HandleFunc("POST /api/children", s.childH.Create)
	mux.HandleFunc("GET /api/children", s.childH.List)
	mux.HandleFunc("GET /api/children/{id}", s.childH.Get)
	mux.HandleFunc("PUT /api/children/{id}", s.childH.Update)
	mux.HandleFunc("DELETE /api/children/{id}", s.childH.Delete)

	// Tasks
	mux.HandleFunc("POST /api/children/{child_id}/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/children/{child_id}/tasks", s.taskH.List)
	mux.HandleFunc("PUT /api/children/{child_id}/tasks/sort", s.taskH.Reorder)
	mux.HandleFunc("GET /api/children/{child_id}/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/children/{child_id}/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("PATCH /api/children/{child_id}/tasks/{id}", s.taskH.Patch)
	mux.HandleFunc("DELETE /api/children/{child_id}/tasks/{id}", s.taskH.Delete)

	// Study logs and views
	mux.HandleFunc("PUT /api/children/{child_id}/days/{date}/logs", s.logH.ReplaceDay)
	mux.HandleFunc("GET /api/children/{child_id}/days/{date}", s.logH.Daily)
	mux.HandleFunc("GET /api/children/{child_id}/calendar", s.logH.Calendar)
	mux.HandleFunc("GET /api/children/{child_id}/summary", s.logH.Summary)

	// Push notifications
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	}

	// WebSocket
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.logger.With("component", "websocket")))
}
