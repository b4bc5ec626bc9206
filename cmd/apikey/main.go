package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rezkam/torque/internal/application/auth"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/store"
	"github.com/rezkam/torque/internal/store/postgres"
	"github.com/rezkam/torque/internal/store/sqlite"
)

// Command-line tool to register an application and/or mint an API key for
// it. THIS is not a production-grade tool, just a simple utility for
// development/testing purposes.
func main() {
	name := flag.String("name", "", "Name/description for the API key (required)")
	days := flag.Int("days", 0, "Number of days until expiration (0 = never expires)")
	backend := flag.String("backend", getEnv("TORQUE_STORE_BACKEND", "sqlite"), "store backend: postgres or sqlite")
	pgURL := flag.String("postgres-url", os.Getenv("TORQUE_DB_DSN"), "PostgreSQL connection URL (backend=postgres)")
	sqlitePath := flag.String("sqlite-path", getEnv("TORQUE_SQLITE_PATH", "torque.db"), "sqlite database path (backend=sqlite)")
	applicationID := flag.String("application-id", "", "existing application ID to mint a key for")
	applicationName := flag.String("application-name", "", "create a new application with this name instead of -application-id")

	flag.Parse()

	if *name == "" {
		fmt.Println("Error: -name is required")
		flag.Usage()
		os.Exit(1)
	}
	if *applicationID == "" && *applicationName == "" {
		fmt.Println("Error: one of -application-id or -application-name is required")
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()

	s, closeStore, err := openStore(ctx, *backend, *pgURL, *sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	appID := *applicationID
	if appID == "" {
		appID = uuid.NewString()
		app := domain.Application{ID: appID, Name: *applicationName}
		if err := s.CreateApplication(ctx, app); err != nil {
			log.Fatalf("Failed to create application: %v", err)
		}
		fmt.Printf("Created application %q with ID: %s\n", *applicationName, appID)
	}

	var expiresAt *time.Time
	if *days > 0 {
		expiry := time.Now().AddDate(0, 0, *days)
		expiresAt = &expiry
	}

	keyType := getEnv("TORQUE_API_KEY_TYPE", "sk")
	service := getEnv("TORQUE_API_SERVICE_NAME", "torque")
	version := getEnv("TORQUE_API_VERSION", "v1")

	apiKey, err := auth.CreateAPIKey(ctx, s, appID, keyType, service, version, *name, expiresAt)
	if err != nil {
		log.Fatalf("Failed to create API key: %v", err)
	}

	fmt.Println("\nAPI key created successfully.")
	fmt.Println("----------------------------------------")
	fmt.Printf("Application ID: %s\n", appID)
	fmt.Printf("Name: %s\n", *name)
	fmt.Printf("Format: %s-%s-%s-{short}-{long}\n", keyType, service, version)
	if expiresAt != nil {
		fmt.Printf("Expires: %s (%d days)\n", expiresAt.Format(time.RFC3339), *days)
	} else {
		fmt.Println("Expires: never")
	}
	fmt.Println("----------------------------------------")
	fmt.Printf("\nAPI Key: %s\n\n", apiKey)
	fmt.Println("Save this key now. It will not be shown again.")
	fmt.Println("----------------------------------------")
	fmt.Println("Usage example:")
	fmt.Printf("  curl -X POST -H \"Authorization: Bearer %s\" \"http://localhost:8080/?url=https://example.com/hook\"\n", apiKey)
}

func openStore(ctx context.Context, backend, pgURL, sqlitePath string) (store.Store, func(), error) {
	switch backend {
	case "postgres":
		if pgURL == "" {
			return nil, nil, fmt.Errorf("-postgres-url or TORQUE_DB_DSN is required for backend=postgres")
		}
		s, err := postgres.NewStore(ctx, postgres.Config{DSN: pgURL})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := sqlite.NewStore(ctx, sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
