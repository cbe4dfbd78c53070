package handlers

import (
	"encoding/csv"
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

	"github.com/jung-kurt/gofpdf"
	"gorm.io/gorm"
)

type ExportHandler struct {
	db        *gorm.DB
	clock     *timeutil.Clock
	ledger    *ledger.Ledger
	hours     *hours.Aggregator
	templates map[string]*template.Template
}

func NewExportHandler(db *gorm.DB, clock *timeutil.Clock, l *ledger.Ledger, agg *hours.Aggregator, templates map[string]*template.Template) *ExportHandler {
	return &ExportHandler{db: db, clock: clock, ledger: l, hours: agg, templates: templates}
}

func (h *ExportHandler) ExportPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var users []models.User
	if user.IsAdmin() {
		h.db.Order("username asc").Find(&users)
	}

	now := h.clock.Now()
	data := map[string]interface{}{
		"User":  user,
		"Users": users,
		"From":  time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02"),
		"To":    now.Format("2006-01-02"),
		"Error": r.URL.Query().Get("error"),
	}
	h.templates["export"].ExecuteTemplate(w, "base", data)
}

// exportRange resolves the target user and date range from query parameters.
// Defaults to the current month; admins may export any user via user_id.
func (h *ExportHandler) exportRange(r *http.Request, user *models.User) (*models.User, time.Time, time.Time, error) {
	now := h.clock.Now()
	from := timeutil.DateOnly(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()))
	to := from.AddDate(0, 1, 0)

	if s := r.URL.Query().Get("from"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %w", err)
		}
		from = timeutil.DateOnly(d)
	}
	if s := r.URL.Query().Get("to"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %w", err)
		}
		// Inclusive end date
		to = timeutil.DateOnly(d).AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("empty date range")
	}

	target := user
	if idStr := r.URL.Query().Get("user_id"); idStr != "" && user.IsAdmin() {
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("invalid user ID")
		}
		var t models.User
		if err := h.db.First(&t, id).Error; err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("user not found")
		}
		target = &t
	}

	return target, from, to, nil
}

func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	target, from, to, err := h.exportRange(r, user)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.ledger.ListRange(target.ID, from, to)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("records_%s_%s_%s.csv", target.Username, from.Format("2006-01-02"), to.AddDate(0, 0, -1).Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"Employee", "Date", "Entry", "Exit", "Duration", "Location", "Notes"})

	var total time.Duration
	for _, rec := range records {
		exit := ""
		if rec.ExitTime != nil {
			exit = h.clock.ToLocal(*rec.ExitTime).Format("15:04")
		}
		dur := rec.Duration()
		total += dur
		writer.Write([]string{
			target.DisplayName(),
			rec.Date.Format("2006-01-02"),
			h.clock.ToLocal(rec.EntryTime).Format("15:04"),
			exit,
			timeutil.FormatDuration(dur),
			rec.Location,
			rec.Notes,
		})
	}

	writer.Write([]string{"", "", "", "Total", timeutil.FormatDuration(total), "", ""})
}

func (h *ExportHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	target, from, to, err := h.exportRange(r, user)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.ledger.ListRange(target.ID, from, to)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Time records", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, fmt.Sprintf("Time records: %s", target.DisplayName()))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.AddDate(0, 0, -1).Format("2006-01-02")))
	pdf.Ln(12)

	colWidths := []float64{28, 20, 20, 28, 50, 44}
	headers := []string{"Date", "Entry", "Exit", "Duration", "Location", "Notes"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, head := range headers {
		pdf.CellFormat(colWidths[i], 7, head, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	var total time.Duration
	for _, rec := range records {
		exit := ""
		if rec.ExitTime != nil {
			exit = h.clock.ToLocal(*rec.ExitTime).Format("15:04")
		}
		dur := rec.Duration()
		total += dur

		cells := []string{
			rec.Date.Format("2006-01-02"),
			h.clock.ToLocal(rec.EntryTime).Format("15:04"),
			exit,
			timeutil.FormatDuration(dur),
			rec.Location,
			rec.Notes,
		}
		for i, cell := range cells {
			pdf.CellFormat(colWidths[i], 6, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colWidths[0]+colWidths[1]+colWidths[2], 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colWidths[3], 7, timeutil.FormatDuration(total), "1", 0, "L", false, 0, "")
	pdf.CellFormat(colWidths[4]+colWidths[5], 7, "", "1", 0, "L", false, 0, "")
	pdf.Ln(-1)

	filename := fmt.Sprintf("records_%s_%s_%s.pdf", target.Username, from.Format("2006-01-02"), to.AddDate(0, 0, -1).Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := pdf.Output(w); err != nil {
		http.Error(w, "Failed to render PDF", http.StatusInternalServerError)
	}
}
