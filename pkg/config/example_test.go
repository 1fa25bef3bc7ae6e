package config_test

import (
	"fmt"

	"github.com/ajitpratap0/seedsync/pkg/config"
)

// ExampleDefault demonstrates the values used when nothing else is configured.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("Strict: %t\n", cfg.Storage.Strict)
	fmt.Printf("Truncate: %t\n", cfg.TruncateTables)
	fmt.Printf("Project: %s@%s\n", cfg.ProjectRepo, cfg.ProjectVersion)

	// Output:
	// Backend: s3
	// Strict: true
	// Truncate: true
	// Project: tuva-health/tuva@v0.8.6
}

// ExampleConfig_ValidateLoad shows the settings a PostgreSQL load needs.
func ExampleConfig_ValidateLoad() {
	cfg := config.Default()
	cfg.DBTProjectYMLPath = "dbt_project.yml"

	fmt.Println(cfg.ValidateLoad())

	cfg.PGConnectionString = "postgres://localhost/warehouse"
	cfg.SeedsDirectory = "seeds"
	fmt.Println(cfg.ValidateLoad())

	// Output:
	// pg_connection_string is required
	// <nil>
}
