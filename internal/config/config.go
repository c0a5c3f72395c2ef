package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/signalsfoundry/carecascade-simulator/internal/logging"
	"github.com/signalsfoundry/carecascade-simulator/internal/observability"
	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
)

// Config holds all configuration values.
type Config struct {
	// Catalog
	CatalogPath string

	// Engine defaults
	Weeks        int
	DiscountRate float64
	MaxParallel  int
	HealthSystem string
	Country      string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Tracing
	TracingEnabled     bool
	TracingExporter    string
	TracingServiceName string
	TracingSampleRatio float64
	OTLPEndpoint       string
}

// Load reads configuration from environment variables. Malformed numbers
// fall back to the defaults.
func Load() Config {
	return Config{
		CatalogPath: getEnv("SIM_CATALOG_PATH", ""),

		Weeks:        getInt("SIM_WEEKS", model.DefaultHorizonWeeks),
		DiscountRate: getFloat("SIM_DISCOUNT_RATE", 0.03),
		MaxParallel:  getInt("SIM_MAX_PARALLEL", 0),
		HealthSystem: getEnv("SIM_HEALTH_SYSTEM", kb.GenericID),
		Country:      getEnv("SIM_COUNTRY", ""),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:   getEnv("LOG_FILE", ""),

		TracingEnabled:     strings.EqualFold(getEnv("SIM_TRACING_ENABLED", ""), "true"),
		TracingExporter:    strings.ToLower(getEnv("SIM_TRACING_EXPORTER", observability.ExporterStdout)),
		TracingServiceName: getEnv("SIM_TRACING_SERVICE_NAME", "carecascade-simulator"),
		TracingSampleRatio: getRatio("SIM_TRACING_SAMPLE_RATIO", 1),
		OTLPEndpoint:       getEnv("SIM_OTLP_ENDPOINT", ""),
	}
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	return logging.Config{
		Level:     c.LogLevel,
		Format:    c.LogFormat,
		AddSource: c.LogLevel == "debug",
		Output:    os.Stderr,
	}
}

// Tracing returns the tracing configuration of a component ("cli" or
// "server") with the engine defaults recorded on the span resource.
func (c Config) Tracing(component, version string) observability.TracingConfig {
	source := "embedded"
	if c.CatalogPath != "" {
		source = c.CatalogPath
	}
	return observability.TracingConfig{
		Enabled:     c.TracingEnabled,
		Exporter:    c.TracingExporter,
		Endpoint:    c.OTLPEndpoint,
		SampleRatio: c.TracingSampleRatio,
		Service: observability.SimulatorResource{
			Name:          c.TracingServiceName,
			Version:       version,
			Component:     component,
			CatalogSource: source,
			HorizonWeeks:  c.Weeks,
			DiscountRate:  c.DiscountRate,
			HealthSystem:  c.HealthSystem,
		},
	}
}

// Catalog loads the embedded catalog and overlays CatalogPath when set.
func (c Config) Catalog() (*kb.KnowledgeBase, error) {
	store, err := kb.Default()
	if err != nil {
		return nil, err
	}
	if c.CatalogPath != "" {
		if err := store.LoadFile(c.CatalogPath); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil && v >= 0 {
		return v
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil && v >= 0 {
		return v
	}
	return defaultVal
}

func getRatio(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil && v >= 0 && v <= 1 {
		return v
	}
	return defaultVal
}
