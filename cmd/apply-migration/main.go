package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"github.com/propplyai/propply-ai-sub002/internal/config"
	"github.com/propplyai/propply-ai-sub002/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <migration_file.sql>", os.Args[0])
	}

	migrationFile := os.Args[1]
	sqlContent, err := os.ReadFile(migrationFile)
	if err != nil {
		log.Fatalf("Failed to read migration file: %v", err)
	}

	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	// Split on semicolons and run each statement. The schema file keeps to
	// plain DDL, so this split is safe.
	statements := strings.Split(string(sqlContent), ";")
	executed := 0
	for i, stmt := range statements {
		stmt = stripLeadingComments(stmt)
		if stmt == "" {
			continue
		}

		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Failed to execute statement %d: %v\nStatement: %s", i+1, err, stmt[:min(100, len(stmt))])
		}
		executed++
		fmt.Printf("Statement %d/%d executed\n", i+1, len(statements))
	}

	fmt.Printf("\nMigration completed: %d statements applied\n", executed)
}

// stripLeadingComments drops blank and comment lines ahead of a statement,
// so a fragment like "-- note\nCREATE TABLE ..." still executes.
func stripLeadingComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	start := 0
	for start < len(lines) {
		line := strings.TrimSpace(lines[start])
		if line == "" || strings.HasPrefix(line, "--") {
			start++
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n"))
}
