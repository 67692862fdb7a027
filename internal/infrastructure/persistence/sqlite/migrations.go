package sqlite

import "embed"

// Migrations holds the ledger schema, applied with database.Migrator
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations
const MigrationsDir = "migrations"
