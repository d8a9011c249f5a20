package status

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-sync/internal/database"
	"media-sync/internal/events"
	"media-sync/internal/logging"
	"media-sync/internal/model"
	"media-sync/internal/queue"
	"media-sync/internal/scheduler"
)

// Version is the reported application version, overridable at build
// time with -ldflags.
var Version = "dev"

// Server serves the observability endpoints.
type Server struct {
	db       *database.Database
	queue    *queue.Queue
	feed     *events.Feed
	sched    *scheduler.Scheduler
	accounts map[string]model.Account
	started  time.Time
}

// NewServer creates a status server over the given collaborators.
func NewServer(db *database.Database, q *queue.Queue, feed *events.Feed, sched *scheduler.Scheduler, accounts []model.Account) *Server {
	byID := make(map[string]model.Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}
	return &Server{
		db:       db,
		queue:    q,
		feed:     feed,
		sched:    sched,
		accounts: byID,
		started:  time.Now(),
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.HealthCheck).Methods("GET")
	r.HandleFunc("/readyz", s.ReadinessCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.GetStatus).Methods("GET")
	api.HandleFunc("/sync/{account}", s.TriggerSync).Methods("POST")
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port string) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("status server listening on :%s", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports process liveness.
func (s *Server) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Version:      Version,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	})
}

// ReadinessCheck returns 200 only when the index store answers queries.
func (s *Server) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.db.Counts(r.Context(), ""); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Accounts     int               `json:"accounts"`
	TotalFolders int               `json:"totalFolders"`
	TotalFiles   int               `json:"totalFiles"`
	QueueActive  int               `json:"queueActive"`
	QueueWaiting int               `json:"queueWaiting"`
	RecentEvents []model.SyncEvent `json:"recentEvents"`
}

// GetStatus returns a snapshot of queue depth, index totals and the
// recent event feed.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	folders, files, err := s.db.Counts(r.Context(), "")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	active, waiting := s.queue.Counts()

	writeJSON(w, http.StatusOK, StatusResponse{
		Accounts:     len(s.accounts),
		TotalFolders: folders,
		TotalFiles:   files,
		QueueActive:  active,
		QueueWaiting: waiting,
		RecentEvents: s.feed.Recent(),
	})
}

// TriggerSync seeds an immediate sync for one account.
func (s *Server) TriggerSync(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account"]
	account, ok := s.accounts[accountID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown account " + accountID})
		return
	}

	if err := s.sched.StartAccountSync(r.Context(), account); err != nil {
		logging.Error("status: sync trigger for %s failed: %v", accountID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.sched.Kick()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "queued",
		"account": accountID,
	})
}
