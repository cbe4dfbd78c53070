package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"fichador/notify"
)

// TasksHandler exposes the cron trigger endpoints. An external scheduler hits
// them periodically; all idempotency lives in the notification jobs, so a
// duplicate or delayed trigger is harmless.
type TasksHandler struct {
	token     string
	scheduler *notify.Scheduler
}

func NewTasksHandler(token string, scheduler *notify.Scheduler) *TasksHandler {
	return &TasksHandler{token: token, scheduler: scheduler}
}

// authorized checks the shared token, taken from the token query parameter or
// the X-CRON-TOKEN header. An empty configured token disables the endpoints.
func (h *TasksHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	got := r.URL.Query().Get("token")
	if got == "" {
		got = r.Header.Get("X-CRON-TOKEN")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

func (h *TasksHandler) RunTick(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	h.scheduler.RunTick(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *TasksHandler) RunWeekly(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	h.scheduler.RunWeekly(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
