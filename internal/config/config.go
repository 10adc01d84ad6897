package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings" // strings normalises enum-like values
	"time"    // time parses ticket lifetimes
)

// Store backends selectable through STORE.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database settings are only required when the
// MySQL store is selected.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	Store           string        // ticket store backend: "mysql" or "memory"
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	JWTSecret       string        // secret used to verify access tokens
	TicketSecret    string        // deployment secret the ticket signing key is derived from
	TicketTTL       time.Duration // lifetime of an issued ticket
	TicketRetention time.Duration // how long expired, unredeemed tickets are kept
	PurgeInterval   time.Duration // how often expired tickets are swept
	RabbitURL       string        // AMQP broker URL for attendance events (empty disables publishing)
	LogLevel        string        // zerolog level name
	SeedEvents      []string      // event IDs preloaded into the memory store, always open for check-in
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:             must("APP_ENV"),                            // environment (dev/test/prod)
		Port:            must("APP_PORT"),                           // port to bind the HTTP server
		Store:           strings.ToLower(envStr("STORE", StoreMySQL)), // ticket store backend
		JWTSecret:       must("JWT_SECRET"),                         // secret for verifying access tokens
		TicketSecret:    must("TICKET_SECRET"),                      // ticket key material
		TicketTTL:       envDur("TICKET_TTL", 60*time.Second),       // ticket lifetime
		TicketRetention: envDur("TICKET_RETENTION", time.Hour),      // expired ticket retention
		PurgeInterval:   envDur("TICKET_PURGE_INTERVAL", 10*time.Minute),
		RabbitURL:       rabbitURL(),
		LogLevel:        envStr("LOG_LEVEL", "info"),
	}
	if cfg.TicketTTL < time.Second {
		log.Fatalf("invalid TICKET_TTL: %s (minimum 1s)", cfg.TicketTTL)
	}
	switch cfg.Store {
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case StoreMemory:
		cfg.SeedEvents = splitList(os.Getenv("SEED_EVENTS"))
	default:
		log.Fatalf("invalid STORE: %q", cfg.Store)
	}
	return cfg
}

// rabbitURL honours RABBITMQ_URL and the AMQP_URL fallback.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
