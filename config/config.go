package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DatabaseURL   string        `envconfig:"DATABASE_URL" default:"postgresql://postgres@localhost:5432/fichador"`
	JWTSecret     string        `envconfig:"JWT_SECRET" default:"your-super-secret-key-change-in-production"`
	JWTExpiration time.Duration `envconfig:"JWT_EXPIRATION" default:"24h"`
	ServerPort    string        `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	// Organization-local time zone; schedules and calendar dates use this zone,
	// instants are stored in UTC.
	Timezone string `envconfig:"TIMEZONE" default:"Europe/Madrid"`

	// Shared secret for the /tasks cron trigger endpoints. Empty disables them.
	CronToken string `envconfig:"CRON_TOKEN"`

	InviteExpiration time.Duration `envconfig:"INVITE_EXPIRATION" default:"168h"`

	// Web Push VAPID credentials. Empty keys disable push delivery.
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `envconfig:"VAPID_SUBJECT" default:"mailto:admin@example.com"`

	// SMTP credentials for summary emails. Empty host disables email delivery.
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"fichador@example.com"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
