package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
)

const defaultMigrationsDir = "internal/db/migrations"

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", defaultMigrationsDir, "directory with migration files")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	command := flag.Arg(0)

	db, err := openDB()
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("migrate: set dialect: %v", err)
	}

	if err := goose.RunContext(context.Background(), command, db, *dir, flag.Args()[1:]...); err != nil {
		log.Fatalf("migrate: goose %s: %v", command, err)
	}
}

// openDB builds a DSN from the same env vars the service config uses,
// so one .env drives both the service and its migrations.
func openDB() (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		envOr("DB_HOST", "localhost"),
		envOr("DB_PORT", "5432"),
		envOr("DB_USER", "postgres"),
		envOr("DB_PASSWORD", "postgres"),
		envOr("DB_NAME", "billing_service"),
		envOr("DB_SSL_MODE", "disable"),
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: migrate [-dir DIR] COMMAND [ARGS]

Commands:
    up                   apply all pending migrations
    up-to VERSION        migrate up to VERSION
    down                 roll back one migration
    down-to VERSION      roll back to VERSION
    status               print migration status
    version              print current schema version
    create NAME sql      create a new timestamped migration

Connection comes from DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME,
DB_SSL_MODE (a .env file is honored).
`)
}
