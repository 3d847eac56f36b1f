// Command init_db creates the underwriting database if needed and applies
// the run storage schema.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"underwriting-engine/internal/config"
	"underwriting-engine/internal/services/database"
)

func main() {
	fmt.Println("=== Database Initialization Script ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.DatabaseConfigured() {
		fmt.Println("DATABASE_URL or DB_PASSWORD must be set")
		os.Exit(1)
	}
	databaseURL := cfg.DatabaseURL()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		fmt.Printf("Invalid database URL: %v\n", err)
		os.Exit(1)
	}
	dbName := connConfig.Database

	// First connect to default 'postgres' database to create our database
	fmt.Println("Connecting to PostgreSQL server...")
	adminConfig := connConfig.Copy()
	adminConfig.Database = "postgres"
	adminConn, err := pgx.ConnectConfig(ctx, adminConfig)
	if err != nil {
		fmt.Printf("Failed to connect to PostgreSQL: %v\n", err)
		os.Exit(1)
	}

	// Check if database exists
	var exists bool
	err = adminConn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		fmt.Printf("Failed to check database existence: %v\n", err)
		adminConn.Close(ctx)
		os.Exit(1)
	}

	if !exists {
		fmt.Printf("Creating %q database...\n", dbName)
		if _, err := adminConn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
			fmt.Printf("Failed to create database: %v\n", err)
			adminConn.Close(ctx)
			os.Exit(1)
		}
	} else {
		fmt.Printf("Database %q already exists\n", dbName)
	}
	adminConn.Close(ctx)

	// Now apply the schema through the repository
	db, err := database.New(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Applying underwriting run schema...")
	repo := database.NewRunRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		fmt.Printf("Failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	// Verify
	runCount, err := repo.Count(ctx)
	if err != nil {
		fmt.Printf("Warning: Could not count runs: %v\n", err)
	} else {
		fmt.Printf("Stored underwriting runs: %d\n", runCount)
	}

	fmt.Println()
	fmt.Println("Database initialization completed successfully!")
}
