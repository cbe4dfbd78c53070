package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"fichador/middleware"
	"fichador/models"
	"fichador/schedule"

	"gorm.io/gorm"
)

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type ScheduleHandler struct {
	db        *gorm.DB
	store     *schedule.Store
	templates map[string]*template.Template
}

func NewScheduleHandler(db *gorm.DB, store *schedule.Store, templates map[string]*template.Template) *ScheduleHandler {
	return &ScheduleHandler{db: db, store: store, templates: templates}
}

// targetUser resolves which user's schedule is being viewed or edited. Admins
// may pick any user via the user_id parameter; everyone else gets their own.
func (h *ScheduleHandler) targetUser(r *http.Request, user *models.User) (*models.User, error) {
	idStr := r.FormValue("user_id")
	if idStr == "" || !user.IsAdmin() {
		return user, nil
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return nil, err
	}
	var target models.User
	if err := h.db.First(&target, id).Error; err != nil {
		return nil, err
	}
	return &target, nil
}

type dayRow struct {
	Day      int
	Name     string
	Schedule *models.Schedule
}

func (h *ScheduleHandler) SchedulePage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	target, err := h.targetUser(r, user)
	if err != nil {
		http.Redirect(w, r, "/schedule?error=User+not+found", http.StatusSeeOther)
		return
	}

	rows, err := h.store.Week(target.ID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	week := make([]dayRow, 7)
	for i := range week {
		week[i] = dayRow{Day: i, Name: dayNames[i]}
	}
	for i := range rows {
		week[rows[i].DayOfWeek].Schedule = &rows[i]
	}

	var users []models.User
	if user.IsAdmin() {
		h.db.Order("username asc").Find(&users)
	}

	data := map[string]interface{}{
		"User":    user,
		"Target":  target,
		"Users":   users,
		"Week":    week,
		"Error":   r.URL.Query().Get("error"),
		"Success": r.URL.Query().Get("success"),
	}
	h.templates["schedule"].ExecuteTemplate(w, "base", data)
}

func (h *ScheduleHandler) SaveDay(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/schedule?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	target, err := h.targetUser(r, user)
	if err != nil {
		http.Redirect(w, r, "/schedule?error=User+not+found", http.StatusSeeOther)
		return
	}

	day, err := strconv.Atoi(r.FormValue("day"))
	if err != nil {
		http.Redirect(w, r, "/schedule?error=Invalid+day", http.StatusSeeOther)
		return
	}

	shift1 := schedule.Shift{Start: r.FormValue("start_time"), End: r.FormValue("end_time")}
	var shift2 *schedule.Shift
	if s2, e2 := r.FormValue("start_time_2"), r.FormValue("end_time_2"); s2 != "" && e2 != "" {
		shift2 = &schedule.Shift{Start: s2, End: e2}
	}
	active := r.FormValue("is_active") == "on"

	if _, err := h.store.Upsert(target.ID, day, shift1, shift2, active); err != nil {
		msg := "Invalid+schedule"
		if errors.Is(err, schedule.ErrInvalidShift) {
			msg = "Shift+end+must+be+after+its+start"
		}
		http.Redirect(w, r, fmt.Sprintf("/schedule?user_id=%d&error=%s", target.ID, msg), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/schedule?user_id=%d&success=Schedule+saved", target.ID), http.StatusSeeOther)
}

func (h *ScheduleHandler) CopyDay(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/schedule?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	target, err := h.targetUser(r, user)
	if err != nil {
		http.Redirect(w, r, "/schedule?error=User+not+found", http.StatusSeeOther)
		return
	}

	sourceDay, err := strconv.Atoi(r.FormValue("source_day"))
	if err != nil {
		http.Redirect(w, r, "/schedule?error=Invalid+day", http.StatusSeeOther)
		return
	}

	var targetDays []int
	for _, v := range r.Form["target_days"] {
		day, err := strconv.Atoi(v)
		if err != nil || day < 0 || day > 6 {
			http.Redirect(w, r, "/schedule?error=Invalid+day", http.StatusSeeOther)
			return
		}
		targetDays = append(targetDays, day)
	}
	if len(targetDays) == 0 {
		http.Redirect(w, r, fmt.Sprintf("/schedule?user_id=%d&error=Pick+at+least+one+target+day", target.ID), http.StatusSeeOther)
		return
	}

	if err := h.store.Copy(target.ID, sourceDay, targetDays); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Redirect(w, r, fmt.Sprintf("/schedule?user_id=%d&error=Source+day+has+no+schedule", target.ID), http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/schedule?user_id=%d&error=Failed+to+copy+schedule", target.ID), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/schedule?user_id=%d&success=Schedule+copied", target.ID), http.StatusSeeOther)
}
