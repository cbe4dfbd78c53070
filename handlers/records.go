package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"fichador/hours"
	"fichador/ledger"
	"fichador/middleware"
	"fichador/models"
	"fichador/timeutil"

	"gorm.io/gorm"
)

type RecordsHandler struct {
	db        *gorm.DB
	clock     *timeutil.Clock
	ledger    *ledger.Ledger
	hours     *hours.Aggregator
	templates map[string]*template.Template
}

func NewRecordsHandler(db *gorm.DB, clock *timeutil.Clock, l *ledger.Ledger, agg *hours.Aggregator, templates map[string]*template.Template) *RecordsHandler {
	return &RecordsHandler{
		db:        db,
		clock:     clock,
		ledger:    l,
		hours:     agg,
		templates: templates,
	}
}

// flashError maps ledger errors onto user-facing redirect messages. State
// conflicts get a distinct wording so users do not retry them blindly.
func flashError(err error) string {
	switch {
	case errors.Is(err, ledger.ErrAlreadyClockedIn):
		return "You+already+have+an+open+record+for+today"
	case errors.Is(err, ledger.ErrNoOpenRecord):
		return "There+is+no+open+record+to+close"
	case errors.Is(err, ledger.ErrExitBeforeEntry):
		return "Exit+time+cannot+be+before+entry+time"
	case errors.Is(err, ledger.ErrNotAllowed):
		return "You+are+not+allowed+to+modify+this+record"
	default:
		return "Operation+failed"
	}
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (h *RecordsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	now := h.clock.Now()
	today := timeutil.DateOnly(now)
	weekStart := today.AddDate(0, 0, -timeutil.WeekdayIndex(now))

	workedToday, _ := h.hours.Worked(user.ID, today, today.AddDate(0, 0, 1))
	workedWeek, _ := h.hours.Worked(user.ID, weekStart, weekStart.AddDate(0, 0, 7))
	workedTotal, _ := h.hours.WorkedAllTime(user.ID)
	requiredWeek, _ := h.hours.Required(user.ID, weekStart)

	var openRecord *models.TimeRecord
	if rec, err := h.ledger.OpenRecord(user.ID); err == nil {
		openRecord = rec
	}

	records, _ := h.ledger.ListRange(user.ID, today.AddDate(0, 0, -7), today.AddDate(0, 0, 1))

	remaining := time.Duration(user.TotalHoursRequired*float64(time.Hour)) - workedTotal
	if remaining < 0 {
		remaining = 0
	}

	data := map[string]interface{}{
		"User":         user,
		"OpenRecord":   openRecord,
		"Records":      records,
		"WorkedToday":  timeutil.FormatDuration(workedToday),
		"WorkedWeek":   timeutil.FormatDuration(workedWeek),
		"WorkedTotal":  timeutil.FormatDuration(workedTotal),
		"RequiredWeek": fmt.Sprintf("%.1f h", requiredWeek),
		"Remaining":    timeutil.FormatDuration(remaining),
		"Today":        now.Format("2006-01-02"),
		"Error":        r.URL.Query().Get("error"),
		"Success":      r.URL.Query().Get("success"),
	}
	h.templates["dashboard"].ExecuteTemplate(w, "base", data)
}

// RecordsPage lists the user's records for a date range, defaulting to the
// current month.
func (h *RecordsHandler) RecordsPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	now := h.clock.Now()
	from := timeutil.DateOnly(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()))
	to := from.AddDate(0, 1, 0)

	if s := r.URL.Query().Get("from"); s != "" {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			from = timeutil.DateOnly(d)
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			to = timeutil.DateOnly(d).AddDate(0, 0, 1)
		}
	}

	records, err := h.ledger.ListRange(user.ID, from, to)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var total time.Duration
	for _, rec := range records {
		total += rec.Duration()
	}

	data := map[string]interface{}{
		"User":    user,
		"Records": records,
		"From":    from.Format("2006-01-02"),
		"To":      to.AddDate(0, 0, -1).Format("2006-01-02"),
		"Total":   timeutil.FormatDuration(total),
		"Error":   r.URL.Query().Get("error"),
		"Success": r.URL.Query().Get("success"),
	}
	h.templates["records"].ExecuteTemplate(w, "base", data)
}

func (h *RecordsHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/dashboard?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	lat := parseCoord(r.FormValue("latitude"))
	lng := parseCoord(r.FormValue("longitude"))

	if _, err := h.ledger.ClockIn(user.ID, time.Now().UTC(), r.FormValue("location"), lat, lng); err != nil {
		http.Redirect(w, r, "/dashboard?error="+flashError(err), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/dashboard?success=Clocked+in", http.StatusSeeOther)
}

func (h *RecordsHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/dashboard?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	if _, err := h.ledger.ClockOut(user.ID, time.Now().UTC(), r.FormValue("location")); err != nil {
		http.Redirect(w, r, "/dashboard?error="+flashError(err), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/dashboard?success=Clocked+out", http.StatusSeeOther)
}

func (h *RecordsHandler) NewRecordPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var users []models.User
	if user.IsAdmin() {
		h.db.Order("username asc").Find(&users)
	}

	data := map[string]interface{}{
		"User":  user,
		"Users": users,
		"Error": r.URL.Query().Get("error"),
		"Today": h.clock.Now().Format("2006-01-02"),
	}
	h.templates["record-form"].ExecuteTemplate(w, "base", data)
}

func (h *RecordsHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/records/new?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	date, err := time.Parse("2006-01-02", r.FormValue("date"))
	if err != nil {
		http.Redirect(w, r, "/records/new?error=Invalid+date+format", http.StatusSeeOther)
		return
	}

	entry, err := h.clock.Combine(date, r.FormValue("entry_time"))
	if err != nil {
		http.Redirect(w, r, "/records/new?error=Invalid+entry+time", http.StatusSeeOther)
		return
	}

	var exit *time.Time
	if exitStr := r.FormValue("exit_time"); exitStr != "" {
		e, err := h.clock.Combine(date, exitStr)
		if err != nil {
			http.Redirect(w, r, "/records/new?error=Invalid+exit+time", http.StatusSeeOther)
			return
		}
		exit = &e
	}

	targetUserID := user.ID
	if userIDStr := r.FormValue("user_id"); userIDStr != "" && user.IsAdmin() {
		if parsedID, err := strconv.ParseUint(userIDStr, 10, 32); err == nil {
			targetUserID = uint(parsedID)
		}
	}

	lat := parseCoord(r.FormValue("latitude"))
	lng := parseCoord(r.FormValue("longitude"))

	_, err = h.ledger.CreateManual(user, targetUserID, date, entry, exit, r.FormValue("location"), lat, lng, r.FormValue("notes"))
	if err != nil {
		http.Redirect(w, r, "/records/new?error="+flashError(err), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/dashboard?success=Record+created", http.StatusSeeOther)
}

func (h *RecordsHandler) EditRecordPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
	if err != nil {
		http.Redirect(w, r, "/dashboard?error=Invalid+record+ID", http.StatusSeeOther)
		return
	}

	rec, err := h.ledger.Get(user, uint(id))
	if err != nil {
		if errors.Is(err, ledger.ErrNotAllowed) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		http.Redirect(w, r, "/dashboard?error=Record+not+found", http.StatusSeeOther)
		return
	}

	entryLocal := h.clock.ToLocal(rec.EntryTime)
	exitLocal := ""
	if rec.ExitTime != nil {
		exitLocal = h.clock.ToLocal(*rec.ExitTime).Format("15:04")
	}

	data := map[string]interface{}{
		"User":       user,
		"Record":     rec,
		"EntryDate":  entryLocal.Format("2006-01-02"),
		"EntryClock": entryLocal.Format("15:04"),
		"ExitClock":  exitLocal,
		"Error":      r.URL.Query().Get("error"),
	}
	h.templates["record-edit"].ExecuteTemplate(w, "base", data)
}

func (h *RecordsHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/dashboard?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	id, err := strconv.ParseUint(r.FormValue("id"), 10, 32)
	if err != nil {
		http.Redirect(w, r, "/dashboard?error=Invalid+record+ID", http.StatusSeeOther)
		return
	}

	date, err := time.Parse("2006-01-02", r.FormValue("date"))
	if err != nil {
		http.Redirect(w, r, fmt.Sprintf("/records/edit?id=%d&error=Invalid+date+format", id), http.StatusSeeOther)
		return
	}

	entry, err := h.clock.Combine(date, r.FormValue("entry_time"))
	if err != nil {
		http.Redirect(w, r, fmt.Sprintf("/records/edit?id=%d&error=Invalid+entry+time", id), http.StatusSeeOther)
		return
	}

	var exit *time.Time
	if exitStr := r.FormValue("exit_time"); exitStr != "" {
		e, err := h.clock.Combine(date, exitStr)
		if err != nil {
			http.Redirect(w, r, fmt.Sprintf("/records/edit?id=%d&error=Invalid+exit+time", id), http.StatusSeeOther)
			return
		}
		exit = &e
	}

	_, err = h.ledger.Update(user, uint(id), entry, exit, r.FormValue("location"), r.FormValue("notes"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotAllowed) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/records/edit?id=%d&error=%s", id, flashError(err)), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/dashboard?success=Record+updated", http.StatusSeeOther)
}

func (h *RecordsHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/dashboard?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	id, err := strconv.ParseUint(r.FormValue("id"), 10, 32)
	if err != nil {
		http.Redirect(w, r, "/dashboard?error=Invalid+record+ID", http.StatusSeeOther)
		return
	}

	if err := h.ledger.Delete(user, uint(id)); err != nil {
		if errors.Is(err, ledger.ErrNotAllowed) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		http.Redirect(w, r, "/dashboard?error=Failed+to+delete+record", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/dashboard?success=Record+deleted", http.StatusSeeOther)
}
