package accounts

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/emails
var emailsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GetEmailTemplatesFS returns the default email templates
func GetEmailTemplatesFS() embed.FS {
	return emailsFS
}
