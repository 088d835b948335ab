// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"

	"stockpost/internal/core/id"
	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := seedLocations(ctx, pool, log); err != nil {
		log.Fatalw("failed to seed locations", "error", err)
	}

	log.Info("seeding completed successfully")
}

// seedLocations creates a demo warehouse with zones and bins under it.
// Re-running the seeder is safe: existing codes are left untouched.
func seedLocations(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	warehouseID, err := upsertLocation(ctx, pool, locationSeed{
		code:    "WH-001",
		name:    "Main warehouse",
		kind:    "warehouse",
		address: "1 Dock Road",
	})
	if err != nil {
		return fmt.Errorf("seed warehouse: %w", err)
	}

	zones := []struct {
		code string
		name string
		bins []string
	}{
		{"WH-001-RCV", "Receiving zone", []string{"RCV-01", "RCV-02"}},
		{"WH-001-STO", "Storage zone", []string{"STO-A1", "STO-A2", "STO-B1", "STO-B2"}},
		{"WH-001-SHP", "Shipping zone", []string{"SHP-01"}},
	}

	for _, z := range zones {
		zoneID, err := upsertLocation(ctx, pool, locationSeed{
			code:        z.code,
			name:        z.name,
			kind:        "zone",
			parentID:    &warehouseID,
			warehouseID: &warehouseID,
		})
		if err != nil {
			log.Warnw("failed to seed zone", "code", z.code, "error", err)
			continue
		}

		for _, binCode := range z.bins {
			_, err := upsertLocation(ctx, pool, locationSeed{
				code:        binCode,
				name:        "Bin " + binCode,
				kind:        "bin",
				parentID:    &zoneID,
				warehouseID: &warehouseID,
			})
			if err != nil {
				log.Warnw("failed to seed bin", "code", binCode, "error", err)
			}
		}
	}

	log.Info("locations seeded")
	return nil
}

type locationSeed struct {
	code        string
	name        string
	kind        string
	parentID    *id.ID
	warehouseID *id.ID
	address     string
}

// upsertLocation inserts a location unless one with the same code exists,
// and returns the ID either way.
func upsertLocation(ctx context.Context, pool *postgres.Pool, seed locationSeed) (id.ID, error) {
	var existingID id.ID
	err := pool.Pool.QueryRow(ctx,
		`SELECT id FROM cat_locations WHERE code = $1 AND NOT deletion_mark`,
		seed.code,
	).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return id.Nil(), fmt.Errorf("check location exists: %w", err)
	}

	locationID := id.New()

	var parentID *string
	if seed.parentID != nil {
		s := seed.parentID.String()
		parentID = &s
	}

	var address *string
	if seed.address != "" {
		address = &seed.address
	}

	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO cat_locations (
			id, code, name, parent_id, is_folder,
			kind, warehouse_id, is_active, address,
			version, deletion_mark
		)
		VALUES ($1, $2, $3, $4, false, $5, $6, true, $7, 1, false)
	`, locationID, seed.code, seed.name, parentID, seed.kind, seed.warehouseID, address)
	if err != nil {
		return id.Nil(), fmt.Errorf("insert location %s: %w", seed.code, err)
	}

	return locationID, nil
}
