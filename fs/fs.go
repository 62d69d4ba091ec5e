// Package appfs holds the files embedded in the binaries: sql migrations, html templates and assets.
package appfs

import "embed"

const (
	MigrationsDir       = "migrations"
	TemplatesDir        = "templates"
	CommonPasswordsPath = "assets/common-passwords.txt.gz"
)

//go:embed migrations/*.sql templates/*.gohtml assets/*
var FS embed.FS
