package main

import (
	"html/template"
	"log"
	"net/http"
	"time"

	"fichador/config"
	"fichador/database"
	"fichador/handlers"
	"fichador/hours"
	"fichador/ledger"
	"fichador/logger"
	"fichador/mailer"
	"fichador/middleware"
	"fichador/models"
	"fichador/notify"
	"fichador/push"
	"fichador/schedule"
	"fichador/timeutil"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	clock, err := timeutil.NewClock(cfg.Timezone)
	if err != nil {
		zlog.Fatal("invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	if err := database.SeedDefaultAdmin(db, zlog); err != nil {
		zlog.Fatal("failed to seed admin user", zap.Error(err))
	}

	// Domain services
	led := ledger.New(db, clock)
	agg := hours.New(db)
	store := schedule.NewStore(db)

	// Notification gateways; each disables itself when unconfigured
	gateways := []notify.Gateway{
		push.NewSender(db, zlog, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject),
	}
	if cfg.SMTPHost != "" {
		gateways = append(gateways, mailer.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, zlog))
	}
	dispatcher := notify.NewDispatcher(zlog, gateways...)
	scheduler := notify.NewScheduler(db, clock, led, agg, store, dispatcher, zlog)

	jwt := middleware.NewJWT(db, cfg.JWTSecret)

	// Define template functions
	funcMap := template.FuncMap{
		"localClock": func(t time.Time) string {
			return clock.ToLocal(t).Format("15:04")
		},
		"localClockPtr": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return clock.ToLocal(*t).Format("15:04")
		},
		"formatDuration": timeutil.FormatDuration,
	}

	// Parse templates - each page template paired with base
	templates := make(map[string]*template.Template)
	pages := []string{
		"login", "register", "change-password", "dashboard",
		"records", "record-form", "record-edit", "schedule", "settings",
		"invites", "export", "users", "user-edit",
	}
	for _, page := range pages {
		templates[page] = template.Must(template.New("").Funcs(funcMap).ParseFiles(
			"templates/base.html",
			"templates/"+page+".html",
		))
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, db, jwt, templates)
	recordsHandler := handlers.NewRecordsHandler(db, clock, led, agg, templates)
	scheduleHandler := handlers.NewScheduleHandler(db, store, templates)
	settingsHandler := handlers.NewSettingsHandler(db, cfg.VAPIDPublicKey, templates)
	exportHandler := handlers.NewExportHandler(db, clock, led, agg, templates)
	usersHandler := handlers.NewUsersHandler(db, templates)
	tasksHandler := handlers.NewTasksHandler(cfg.CronToken, scheduler)

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)

	// Static files (service worker, manifest, icons)
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Public routes
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
	router.Get("/login", authHandler.LoginPage)
	router.Post("/login", authHandler.Login)
	router.Get("/register", authHandler.RegisterPage)
	router.Post("/register", authHandler.Register)

	// Cron trigger endpoints, guarded by the shared token
	router.Get("/tasks/run-tick", tasksHandler.RunTick)
	router.Get("/tasks/run-weekly", tasksHandler.RunWeekly)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(jwt.Authenticate)

		// Logout (doesn't need password change check)
		r.Get("/logout", authHandler.Logout)

		// Password change routes (accessible even when password change required)
		r.Get("/change-password", authHandler.ChangePasswordPage)
		r.Post("/change-password", authHandler.ChangePassword)

		// Routes that require password to be changed first
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePasswordChange)

			// Dashboard and clocking
			r.Get("/dashboard", recordsHandler.Dashboard)
			r.Post("/clock-in", recordsHandler.ClockIn)
			r.Post("/clock-out", recordsHandler.ClockOut)

			// Manual record management
			r.Get("/records", recordsHandler.RecordsPage)
			r.Get("/records/new", recordsHandler.NewRecordPage)
			r.Post("/records/new", recordsHandler.CreateRecord)
			r.Get("/records/edit", recordsHandler.EditRecordPage)
			r.Post("/records/edit", recordsHandler.UpdateRecord)
			r.Post("/records/delete", recordsHandler.DeleteRecord)

			// Weekly schedule
			r.Get("/schedule", scheduleHandler.SchedulePage)
			r.Post("/schedule/save", scheduleHandler.SaveDay)
			r.Post("/schedule/copy", scheduleHandler.CopyDay)

			// Notification settings and push subscriptions
			r.Get("/settings/notifications", settingsHandler.SettingsPage)
			r.Post("/settings/notifications", settingsHandler.UpdateSettings)
			r.Get("/push/public-key", settingsHandler.VAPIDPublicKey)
			r.Post("/push/subscribe", settingsHandler.Subscribe)
			r.Post("/push/unsubscribe", settingsHandler.Unsubscribe)

			// Exports
			r.Get("/export", exportHandler.ExportPage)
			r.Get("/export/csv", exportHandler.ExportCSV)
			r.Get("/export/pdf", exportHandler.ExportPDF)

			// Admin only routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Get("/invites", authHandler.InvitesPage)
				r.Post("/invites", authHandler.CreateInvite)
				r.Get("/users", usersHandler.UsersPage)
				r.Get("/users/edit", usersHandler.EditUserPage)
				r.Post("/users/edit", usersHandler.UpdateUser)
				r.Post("/users/delete", usersHandler.DeleteUser)
			})
		})
	})

	zlog.Info("server starting", zap.String("port", cfg.ServerPort))
	zlog.Fatal("server stopped", zap.Error(http.ListenAndServe(":"+cfg.ServerPort, router)))
}
