package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"path"
	"sort"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	accounts "github.com/goliatone/go-accounts"
	"github.com/kelseyhightower/envconfig"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Settings is the env-loaded server configuration. It implements
// accounts.Config so the controller can consume it directly.
type Settings struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"file:accounts.db?cache=shared"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`

	SigningKey string `envconfig:"SIGNING_KEY" required:"true"`
	Domain     string `envconfig:"DOMAIN" default:"localhost:8080"`
	SiteName   string `envconfig:"SITE_NAME" default:"Accounts"`
	Protocol   string `envconfig:"PROTOCOL" default:"http"`
	FromEmail  string `envconfig:"FROM_EMAIL" default:"no-reply@localhost"`

	ActivationURL           string `envconfig:"ACTIVATION_URL" default:"activate/{uid}/{token}"`
	PasswordResetConfirmURL string `envconfig:"PASSWORD_RESET_CONFIRM_URL" default:"password/reset/confirm/{uid}/{token}"`

	SendActivationEmail        bool `envconfig:"SEND_ACTIVATION_EMAIL" default:"true"`
	LoginAfterRegistration     bool `envconfig:"LOGIN_AFTER_REGISTRATION" default:"false"`
	LoginAfterActivation       bool `envconfig:"LOGIN_AFTER_ACTIVATION" default:"false"`
	SetPasswordRetype          bool `envconfig:"SET_PASSWORD_RETYPE" default:"false"`
	PasswordResetConfirmRetype bool `envconfig:"PASSWORD_RESET_CONFIRM_RETYPE" default:"false"`
	SetUsernameRetype          bool `envconfig:"SET_USERNAME_RETYPE" default:"false"`

	OneTimeTokenTTLHours int `envconfig:"ONE_TIME_TOKEN_TTL_HOURS" default:"24"`

	SMTPAddr     string `envconfig:"SMTP_ADDR"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPHost     string `envconfig:"SMTP_HOST"`

	EmailTemplatesDir string `envconfig:"EMAIL_TEMPLATES_DIR"`
}

func (s Settings) GetSigningKey() string { return s.SigningKey }
func (s Settings) GetDomain() string { return s.Domain }
func (s Settings) GetSiteName() string { return s.SiteName }
func (s Settings) GetProtocol() string { return s.Protocol }
func (s Settings) GetFromEmail() string { return s.FromEmail }
func (s Settings) GetActivationURL() string { return s.ActivationURL }
func (s Settings) GetPasswordResetConfirmURL() string { return s.PasswordResetConfirmURL }
func (s Settings) GetSendActivationEmail() bool { return s.SendActivationEmail }
func (s Settings) GetLoginAfterRegistration() bool { return s.LoginAfterRegistration }
func (s Settings) GetLoginAfterActivation() bool { return s.LoginAfterActivation }
func (s Settings) GetSetPasswordRetype() bool { return s.SetPasswordRetype }
func (s Settings) GetPasswordResetConfirmRetype() bool { return s.PasswordResetConfirmRetype }
func (s Settings) GetSetUsernameRetype() bool { return s.SetUsernameRetype }
func (s Settings) GetOneTimeTokenTTL() int { return s.OneTimeTokenTTLHours }

func main() {
	var cfg Settings
	if err := envconfig.Process("accounts", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Settings) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := applyMigrations(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	repo := accounts.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return fmt.Errorf("validate repositories: %w", err)
	}

	engine, err := emailEngine(cfg)
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}

	logger := serverLogger{}

	tokens := accounts.NewOneTimeTokenService([]byte(cfg.SigningKey), cfg.OneTimeTokenTTLHours, logger)

	notifier := accounts.NewNotifier(engine, mailer(cfg, logger), tokens, cfg).
		WithLogger(logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.SiteName,
		DisableStartupMessage: !cfg.Debug,
	})

	accounts.RegisterAccountRoutes(app,
		accounts.WithConfig(cfg),
		accounts.WithRepositoryManager(repo),
		accounts.WithNotifier(notifier),
		accounts.WithControllerLogger(logger),
		accounts.WithControllerDebug(cfg.Debug),
	)

	errs := make(chan error, 1)
	go func() {
		errs <- app.Listen(cfg.Addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		return err
	case sig := <-quit:
		logger.Info("received %s, shutting down", sig)
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}

// applyMigrations executes the embedded SQL files in lexical order. The
// statements are idempotent so re-running at boot is safe.
func applyMigrations(ctx context.Context, db *bun.DB) error {
	root := "data/sql/migrations"

	entries, err := fs.ReadDir(accounts.GetMigrationsFS(), root)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		raw, err := fs.ReadFile(accounts.GetMigrationsFS(), path.Join(root, entry.Name()))
		if err != nil {
			return err
		}

		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
	}

	return nil
}

// emailEngine loads templates from disk when a directory is configured,
// otherwise from the embedded defaults.
func emailEngine(cfg Settings) (*django.Engine, error) {
	var engine *django.Engine

	if cfg.EmailTemplatesDir != "" {
		engine = django.New(cfg.EmailTemplatesDir, ".html")
	} else {
		sub, err := fs.Sub(accounts.GetEmailTemplatesFS(), "data/emails")
		if err != nil {
			return nil, err
		}
		engine = django.NewFileSystem(http.FS(sub), ".html")
	}

	if err := engine.Load(); err != nil {
		return nil, err
	}

	return engine, nil
}

func mailer(cfg Settings, logger accounts.Logger) accounts.Mailer {
	if cfg.SMTPAddr == "" {
		logger.Warn("SMTP_ADDR not set, emails will be logged instead of sent")
		return accounts.LogMailer{Logger: logger}
	}

	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}

	return accounts.NewSMTPMailer(cfg.SMTPAddr, auth)
}

type serverLogger struct{}

func (serverLogger) Error(format string, args ...any) { logf("ERR", format, args...) }
func (serverLogger) Warn(format string, args ...any)  { logf("WRN", format, args...) }
func (serverLogger) Info(format string, args ...any)  { logf("INF", format, args...) }
func (serverLogger) Debug(format string, args ...any) { logf("DBG", format, args...) }

func logf(level, format string, args ...any) {
	fmt.Printf("%s [%s] %s\n", time.Now().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
}
