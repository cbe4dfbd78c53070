package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"fichador/middleware"
	"fichador/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type SettingsHandler struct {
	db             *gorm.DB
	validate       *validator.Validate
	vapidPublicKey string
	templates      map[string]*template.Template
}

func NewSettingsHandler(db *gorm.DB, vapidPublicKey string, templates map[string]*template.Template) *SettingsHandler {
	return &SettingsHandler{
		db:             db,
		validate:       validator.New(),
		vapidPublicKey: vapidPublicKey,
		templates:      templates,
	}
}

// settingsForm mirrors the editable NotificationSettings fields with the
// bounds the scheduler relies on.
type settingsForm struct {
	Enabled             bool   `validate:"-"`
	MissedEntryAfterMin int    `validate:"min=1,max=720"`
	OpenRecordMaxMin    int    `validate:"min=30,max=1440"`
	EndPassedMin        int    `validate:"min=1,max=720"`
	WeeklySummaryDay    int    `validate:"min=0,max=6"`
	WeeklySummaryTime   string `validate:"required,len=5"`
}

// settingsFor loads the user's row, creating it with defaults on first visit.
func (h *SettingsHandler) settingsFor(userID uint) (*models.NotificationSettings, error) {
	var ns models.NotificationSettings
	err := h.db.Where("user_id = ?", userID).First(&ns).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ns = models.NotificationSettings{
			UserID:              userID,
			Enabled:             true,
			MissedEntryAfterMin: 15,
			OpenRecordMaxMin:    600,
			EndPassedMin:        30,
			WeeklySummaryDay:    6,
			WeeklySummaryTime:   "18:00",
		}
		if err := h.db.Create(&ns).Error; err != nil {
			return nil, err
		}
		return &ns, nil
	}
	if err != nil {
		return nil, err
	}
	return &ns, nil
}

func (h *SettingsHandler) SettingsPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	ns, err := h.settingsFor(user.ID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var subscriptions []models.PushSubscription
	h.db.Where("user_id = ? AND is_active = ?", user.ID, true).Find(&subscriptions)

	data := map[string]interface{}{
		"User":           user,
		"Settings":       ns,
		"Subscriptions":  subscriptions,
		"VAPIDPublicKey": h.vapidPublicKey,
		"Error":          r.URL.Query().Get("error"),
		"Success":        r.URL.Query().Get("success"),
	}
	h.templates["settings"].ExecuteTemplate(w, "base", data)
}

func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/settings/notifications?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	form := settingsForm{
		Enabled:           r.FormValue("enabled") == "on",
		WeeklySummaryTime: r.FormValue("weekly_summary_time"),
	}
	var err error
	if form.MissedEntryAfterMin, err = strconv.Atoi(r.FormValue("missed_entry_after_min")); err != nil {
		http.Redirect(w, r, "/settings/notifications?error=Invalid+settings+values", http.StatusSeeOther)
		return
	}
	if form.OpenRecordMaxMin, err = strconv.Atoi(r.FormValue("open_record_max_min")); err != nil {
		http.Redirect(w, r, "/settings/notifications?error=Invalid+settings+values", http.StatusSeeOther)
		return
	}
	if form.EndPassedMin, err = strconv.Atoi(r.FormValue("end_passed_min")); err != nil {
		http.Redirect(w, r, "/settings/notifications?error=Invalid+settings+values", http.StatusSeeOther)
		return
	}
	if form.WeeklySummaryDay, err = strconv.Atoi(r.FormValue("weekly_summary_day")); err != nil {
		http.Redirect(w, r, "/settings/notifications?error=Invalid+settings+values", http.StatusSeeOther)
		return
	}

	if err := h.validate.Struct(form); err != nil {
		http.Redirect(w, r, "/settings/notifications?error=Settings+values+out+of+range", http.StatusSeeOther)
		return
	}

	ns, err := h.settingsFor(user.ID)
	if err != nil {
		http.Redirect(w, r, "/settings/notifications?error=Failed+to+save+settings", http.StatusSeeOther)
		return
	}

	ns.Enabled = form.Enabled
	ns.MissedEntryAfterMin = form.MissedEntryAfterMin
	ns.OpenRecordMaxMin = form.OpenRecordMaxMin
	ns.EndPassedMin = form.EndPassedMin
	ns.WeeklySummaryDay = form.WeeklySummaryDay
	ns.WeeklySummaryTime = form.WeeklySummaryTime

	if err := h.db.Save(ns).Error; err != nil {
		http.Redirect(w, r, "/settings/notifications?error=Failed+to+save+settings", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/settings/notifications?success=Settings+saved", http.StatusSeeOther)
}

// VAPIDPublicKey serves the key the service worker needs to subscribe.
func (h *SettingsHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"public_key": h.vapidPublicKey})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

// Subscribe registers (or reactivates) a browser push endpoint. The endpoint
// URL is the identity: re-subscribing from the same browser updates the row.
func (h *SettingsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Missing subscription fields", http.StatusBadRequest)
		return
	}

	var sub models.PushSubscription
	err := h.db.Where("user_id = ? AND endpoint = ?", user.ID, req.Endpoint).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub = models.PushSubscription{UserID: user.ID, Endpoint: req.Endpoint}
	} else if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	sub.P256dh = req.Keys.P256dh
	sub.Auth = req.Keys.Auth
	sub.UserAgent = r.UserAgent()
	sub.IsActive = true

	if err := h.db.Save(&sub).Error; err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"id": sub.ID})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

func (h *SettingsHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Missing endpoint", http.StatusBadRequest)
		return
	}

	result := h.db.Model(&models.PushSubscription{}).
		Where("user_id = ? AND endpoint = ?", user.ID, req.Endpoint).
		Update("is_active", false)
	if result.Error != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
