package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	App         AppConfig
	Clustering  ClusteringConfig
	Embedding   EmbeddingConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	SMTP        SMTPConfig
	Web         WebConfig
	Maintenance MaintenanceConfig
	Templates   TemplatesConfig
}

type AppConfig struct {
	Name         string // shown in emails and the admin UI
	AdminContact string
}

type ClusteringConfig struct {
	ResultsDir          string  // one directory per cluster (default results)
	DatasetDir          string  // source directory for batch ingestion (default dataset)
	EncodingsFile       string  // defaults to <ResultsDir>/encodings.json
	Tolerance           float64 // max Euclidean distance to join a cluster (default 0.6)
	SimilarityThreshold float64 // min score to suggest a merge (default 0.7)
}

type EmbeddingConfig struct {
	URL          string // defaults to http://localhost:8000
	MaxImageSize int    // longest side before downscaling (default 1920)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, selects the postgres ledger when set
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	SQLitePath   string // request ledger file used when URL is empty (default requests.db)
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string // defaults to face-clusters
	UseSSL    bool
}

// Enabled reports whether object storage for sharing clusters is configured.
func (c *StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

type SMTPConfig struct {
	Server   string // defaults to smtp.gmail.com
	Port     int    // defaults to 587
	Username string
	Password string
	From     string // falls back to Username
	UseTLS   bool
}

type WebConfig struct {
	Port             int
	Host             string
	SessionSecret    string
	AdminPassword    string
	AllowedOrigins   string
	MaxContentLength int64 // upload limit in bytes (default 16 MiB)
}

type MaintenanceConfig struct {
	// AnalysisSchedule is a cron spec with a seconds field; empty disables the job.
	AnalysisSchedule string
}

type TemplatesConfig struct {
	MatchSubject string `yaml:"match_subject"`
	MatchBody    string `yaml:"match_body"`
}

type defaultsFile struct {
	Templates TemplatesConfig `yaml:"templates"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to the default otherwise.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// embedded at build time, so this only fires on a broken build
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	resultsDir := envString("RESULTS_DIR", "results")
	username := os.Getenv("SMTP_USERNAME")

	schedule := "0 0 3 * * *"
	if v, ok := os.LookupEnv("ANALYSIS_SCHEDULE"); ok {
		schedule = strings.TrimSpace(v)
	}

	return &Config{
		App: AppConfig{
			Name:         envString("APP_NAME", "Face Clustering"),
			AdminContact: os.Getenv("ADMIN_CONTACT"),
		},
		Clustering: ClusteringConfig{
			ResultsDir:          resultsDir,
			DatasetDir:          envString("DATASET_DIR", "dataset"),
			EncodingsFile:       envString("ENCODINGS_FILE", filepath.Join(resultsDir, "encodings.json")),
			Tolerance:           envFloat("CLUSTER_TOLERANCE", 0.6),
			SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.7),
		},
		Embedding: EmbeddingConfig{
			URL:          envString("EMBEDDING_URL", "http://localhost:8000"),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", 1920),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			SQLitePath:   envString("REQUESTS_DB_PATH", "requests.db"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envString("MINIO_BUCKET", "face-clusters"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		SMTP: SMTPConfig{
			Server:   envString("SMTP_SERVER", "smtp.gmail.com"),
			Port:     envInt("SMTP_PORT", 587),
			Username: username,
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envString("FROM_EMAIL", username),
			UseTLS:   envBool("SMTP_USE_TLS", true),
		},
		Web: WebConfig{
			Port:             envInt("WEB_PORT", 8080),
			Host:             envString("WEB_HOST", "0.0.0.0"),
			SessionSecret:    os.Getenv("WEB_SESSION_SECRET"),
			AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
			AllowedOrigins:   os.Getenv("WEB_ALLOWED_ORIGINS"),
			MaxContentLength: int64(envInt("MAX_CONTENT_LENGTH", 16*1024*1024)),
		},
		Maintenance: MaintenanceConfig{
			AnalysisSchedule: schedule,
		},
		Templates: defaults.Templates,
	}
}
