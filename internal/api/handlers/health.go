package handlers

import (
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/pkg/queue"
)

type HealthHandler struct {
	db        *gorm.DB
	redis     *redis.Client
	inspector *asynq.Inspector
	google    *google.Factory
}

// NewHealthHandler takes optional redis, inspector and factory; nil ones are
// left out of the report.
func NewHealthHandler(db *gorm.DB, redis *redis.Client, inspector *asynq.Inspector, factory *google.Factory) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, inspector: inspector, google: factory}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health reports dependency health. An open Google breaker degrades the
// report without failing it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]string)
	status := "healthy"

	// Check database
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		services["database"] = "unhealthy"
		status = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	// Check Redis
	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			services["redis"] = "unhealthy"
			status = "unhealthy"
		} else {
			services["redis"] = "healthy"
		}
	}

	if h.google != nil {
		for _, name := range []string{google.ServiceDrive, google.ServiceGmail, google.ServiceCalendar, google.ServiceTasks, google.ServicePeople} {
			state := h.google.BreakerState(name)
			services["google_"+name] = state.String()
			if state == gobreaker.StateOpen && status == "healthy" {
				status = "degraded"
			}
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, HealthResponse{Status: status, Services: services})
}

type ReadyResponse struct {
	Ready        bool `json:"ready"`
	PendingJobs  int  `json:"pendingJobs,omitempty"`
	RetryingJobs int  `json:"retryingJobs,omitempty"`
}

// Ready reports whether the database accepts queries, along with the email
// queue backlog when a queue is configured.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}

	resp := ReadyResponse{Ready: true}
	if h.inspector != nil {
		if info, err := h.inspector.GetQueueInfo(queue.QueueDefault); err == nil {
			resp.PendingJobs = info.Pending
			resp.RetryingJobs = info.Retry
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
