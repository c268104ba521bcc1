// Command init_db creates the evaluation database if needed and applies the
// embedded schema. Run with: go run ./scripts
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"mihac/internal/config"
	"mihac/internal/services/database"
)

func main() {
	fmt.Println("=== Database Initialization Script ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fail("Invalid configuration", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	connCfg, err := pgx.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		fail("Failed to parse database URL", err)
	}
	dbName := connCfg.Database

	// Connect to the maintenance database to create ours.
	connCfg.Database = "postgres"
	fmt.Println("📡 Connecting to PostgreSQL server...")
	adminConn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		fail("Failed to connect to PostgreSQL", err)
	}

	var exists bool
	err = adminConn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		adminConn.Close(ctx)
		fail("Failed to check database existence", err)
	}

	if !exists {
		fmt.Printf("📦 Creating '%s' database...\n", dbName)
		if _, err := adminConn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
			adminConn.Close(ctx)
			fail("Failed to create database", err)
		}
		fmt.Printf("✅ Database '%s' created!\n", dbName)
	} else {
		fmt.Printf("✅ Database '%s' already exists\n", dbName)
	}
	adminConn.Close(ctx)

	fmt.Printf("📡 Connecting to %s database...\n", dbName)
	db, err := database.New(cfg)
	if err != nil {
		fail("Failed to connect to database", err)
	}
	defer db.Close()

	fmt.Println("🚀 Applying schema...")
	if err := db.Migrate(ctx); err != nil {
		fail("Failed to apply schema", err)
	}
	fmt.Println("✅ Schema applied")

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluations").Scan(&count); err != nil {
		fmt.Printf("⚠️  Warning: Could not count evaluations: %v\n", err)
	} else {
		fmt.Printf("   📋 Evaluations stored: %d\n", count)
	}

	fmt.Println()
	fmt.Println("🎉 Database initialization completed successfully!")
	fmt.Println("Set STORE_DRIVER=postgres to persist evaluations.")
}

func fail(msg string, err error) {
	fmt.Printf("❌ %s: %v\n", msg, err)
	os.Exit(1)
}
