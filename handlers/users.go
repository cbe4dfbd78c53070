package handlers

import (
	"html/template"
	"net/http"
	"strconv"

	"fichador/middleware"
	"fichador/models"

	"gorm.io/gorm"
)

type UsersHandler struct {
	db        *gorm.DB
	templates map[string]*template.Template
}

func NewUsersHandler(db *gorm.DB, templates map[string]*template.Template) *UsersHandler {
	return &UsersHandler{db: db, templates: templates}
}

func (h *UsersHandler) UsersPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if !user.CanManageUsers() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var users []models.User
	h.db.Order("username asc").Find(&users)

	data := map[string]interface{}{
		"User":    user,
		"Users":   users,
		"Error":   r.URL.Query().Get("error"),
		"Success": r.URL.Query().Get("success"),
	}
	h.templates["users"].ExecuteTemplate(w, "base", data)
}

func (h *UsersHandler) EditUserPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if !user.CanManageUsers() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
	if err != nil {
		http.Redirect(w, r, "/users?error=Invalid+user+ID", http.StatusSeeOther)
		return
	}

	var target models.User
	if err := h.db.First(&target, id).Error; err != nil {
		http.Redirect(w, r, "/users?error=User+not+found", http.StatusSeeOther)
		return
	}

	data := map[string]interface{}{
		"User":   user,
		"Target": &target,
		"Error":  r.URL.Query().Get("error"),
	}
	h.templates["user-edit"].ExecuteTemplate(w, "base", data)
}

func (h *UsersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if !user.CanManageUsers() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/users?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	id, err := strconv.ParseUint(r.FormValue("id"), 10, 32)
	if err != nil {
		http.Redirect(w, r, "/users?error=Invalid+user+ID", http.StatusSeeOther)
		return
	}

	var target models.User
	if err := h.db.First(&target, id).Error; err != nil {
		http.Redirect(w, r, "/users?error=User+not+found", http.StatusSeeOther)
		return
	}

	totalHours, err := strconv.ParseFloat(r.FormValue("total_hours_required"), 64)
	if err != nil || totalHours < 0 {
		http.Redirect(w, r, "/users/edit?id="+r.FormValue("id")+"&error=Invalid+total+hours", http.StatusSeeOther)
		return
	}

	switch models.Role(r.FormValue("role")) {
	case models.RoleAdmin:
		target.Role = models.RoleAdmin
	case models.RoleEmployee:
		target.Role = models.RoleEmployee
	default:
		http.Redirect(w, r, "/users/edit?id="+r.FormValue("id")+"&error=Invalid+role", http.StatusSeeOther)
		return
	}

	target.FullName = r.FormValue("full_name")
	target.Email = r.FormValue("email")
	target.TotalHoursRequired = totalHours

	if err := h.db.Save(&target).Error; err != nil {
		http.Redirect(w, r, "/users/edit?id="+r.FormValue("id")+"&error=Failed+to+update+user", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/users?success=User+updated", http.StatusSeeOther)
}

// DeleteUser removes the user and everything it owns: schedule rows, time
// records, notification settings and push subscriptions.
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if !user.CanManageUsers() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/users?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	id, err := strconv.ParseUint(r.FormValue("id"), 10, 32)
	if err != nil {
		http.Redirect(w, r, "/users?error=Invalid+user+ID", http.StatusSeeOther)
		return
	}

	if uint(id) == user.ID {
		http.Redirect(w, r, "/users?error=You+cannot+delete+your+own+account", http.StatusSeeOther)
		return
	}

	var target models.User
	if err := h.db.First(&target, id).Error; err != nil {
		http.Redirect(w, r, "/users?error=User+not+found", http.StatusSeeOther)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.Schedule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.TimeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.NotificationSettings{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.PushSubscription{}).Error; err != nil {
			return err
		}
		return tx.Delete(&target).Error
	})
	if err != nil {
		http.Redirect(w, r, "/users?error=Failed+to+delete+user", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/users?success=User+deleted", http.StatusSeeOther)
}
