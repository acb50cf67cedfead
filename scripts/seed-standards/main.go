// Command seed-standards loads standards catalogs from YAML files into
// the database. It upserts by (standard name, control id), so re-running
// it after a catalog update refreshes titles and descriptions without
// duplicating rows or touching engagement data.
//
// Usage:
//
//	go run ./scripts/seed-standards -dir scripts/seed-standards/catalogs
//
// Database connection comes from the standard PG* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"
)

type catalog struct {
	Name        string           `yaml:"name"`
	Version     string           `yaml:"version"`
	Description string           `yaml:"description"`
	Controls    []catalogControl `yaml:"controls"`
}

type catalogControl struct {
	ID                 string `yaml:"id"`
	Title              string `yaml:"title"`
	Description        string `yaml:"description"`
	Domain             string `yaml:"domain"`
	DefaultTestingType string `yaml:"default_testing_type"`
}

func main() {
	dir := flag.String("dir", "scripts/seed-standards/catalogs", "directory of catalog YAML files")
	flag.Parse()

	if err := run(context.Background(), *dir); err != nil {
		log.Fatalf("seed-standards: %v", err)
	}
}

func run(ctx context.Context, dir string) error {
	conn, err := pgx.Connect(ctx, connString())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx) //nolint:errcheck

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		if err := seedFile(ctx, conn, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func seedFile(ctx context.Context, conn *pgx.Conn, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cat catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if cat.Name == "" {
		return fmt.Errorf("catalog has no name")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var standardID string
	err = tx.QueryRow(ctx, `
		INSERT INTO standards (name, version, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			version = EXCLUDED.version,
			description = EXCLUDED.description,
			updated_at = now()
		RETURNING id
	`, cat.Name, cat.Version, cat.Description).Scan(&standardID)
	if err != nil {
		return fmt.Errorf("upsert standard: %w", err)
	}

	for _, control := range cat.Controls {
		if control.ID == "" {
			return fmt.Errorf("control in %s has no id", cat.Name)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO standard_controls (standard_id, control_id, title, description, domain, default_testing_type)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (standard_id, control_id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				domain = EXCLUDED.domain,
				default_testing_type = EXCLUDED.default_testing_type,
				is_active = true
		`, standardID, control.ID, control.Title, control.Description, control.Domain, control.DefaultTestingType)
		if err != nil {
			return fmt.Errorf("upsert control %s: %w", control.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("seeded %s (%d controls)", cat.Name, len(cat.Controls))
	return nil
}

func connString() string {
	host := envOr("PGHOST", "localhost")
	port := envOr("PGPORT", "5432")
	user := envOr("PGUSER", "auditsource")
	dbname := envOr("PGDATABASE", "auditsource")
	sslmode := envOr("PGSSLMODE", "disable")
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, os.Getenv("PGPASSWORD"), dbname, sslmode)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
