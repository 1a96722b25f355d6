package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints and floats
// for sizes and rates.
type Config struct {
    Env                  string  // application environment (e.g. "dev", "prod")
    Port                 string  // HTTP port to listen on
    DBUser               string  // database username
    DBPass               string  // database password (optional)
    DBHost               string  // database host address
    DBPort               string  // database port number
    DBName               string  // database name
    JWTSecret            string  // secret used to verify access tokens
    PaymentAPIBase       string  // payment provider base URL
    PaymentSecretKey     string  // payment provider secret key
    PaymentWebhookSecret string  // secret used to verify webhook signatures
    ConversationAPIBase  string  // messaging service base URL
    ConversationToken    string  // messaging service bearer token
    PlatformFeePercent   float64 // platform fee taken on each order, in percent
    SweepHourUTC         int     // hour of day (UTC) the expiration sweep runs
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:                  must("APP_ENV"),  // environment (dev/test/prod)
        Port:                 must("APP_PORT"), // port to bind the HTTP server
        DBUser:               must("DB_USER"),  // database user
        DBPass:               os.Getenv("DB_PASS"),
        DBHost:               must("DB_HOST"),
        DBPort:               must("DB_PORT"),
        DBName:               must("DB_NAME"),
        JWTSecret:            must("JWT_SECRET"),
        PaymentAPIBase:       must("PAYMENT_API_BASE"),
        PaymentSecretKey:     must("PAYMENT_SECRET_KEY"),
        PaymentWebhookSecret: must("PAYMENT_WEBHOOK_SECRET"),
        ConversationAPIBase:  must("CONVERSATION_API_BASE"),
        ConversationToken:    must("CONVERSATION_TOKEN"),
        PlatformFeePercent:   mustFloat("PLATFORM_FEE_PERCENT"),
        SweepHourUTC:         mustInt("SWEEP_HOUR_UTC"),
    }
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// mustFloat is like must() but converts the retrieved string into a float.
func mustFloat(key string) float64 {
    s := must(key)
    f, err := strconv.ParseFloat(s, 64)
    if err != nil {
        log.Fatalf("invalid float for %s: %q", key, s)
    }
    return f
}
