// Package config provides environment-driven configuration for the RPA toolkit.
//
// All settings come from environment variables, optionally seeded from a .env
// file next to the working directory (LoadEnv). Each subsystem has its own
// config struct and loader so jobs only pull in what they use.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from the given .env files into the process
// environment, overriding existing values. Missing files are ignored; the
// robots run with a mix of machine env and checked-out .env files.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Overload(f)
	}
}

// CredStoreConfig holds the SQL Server credential store settings.
type CredStoreConfig struct {
	Server   string
	Database string
	SymKey   string
	Cert     string
	Table    string
}

// LoadCredStoreConfig loads credential store configuration from environment.
func LoadCredStoreConfig() *CredStoreConfig {
	return &CredStoreConfig{
		Server:   getEnv("SQL_SERVER", ""),
		Database: getEnv("SQL_DATABASE", ""),
		SymKey:   getEnv("SQL_SYM_KEY", ""),
		Cert:     getEnv("SQL_CERT", ""),
		Table:    getEnv("SQL_TABLE", ""),
	}
}

// GraphConfig holds Microsoft Graph application credentials.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// Mailbox is the default sender for robot mails.
	Mailbox string
}

// LoadGraphConfig loads MS Graph configuration from environment.
func LoadGraphConfig() *GraphConfig {
	return &GraphConfig{
		TenantID:     getEnv("MS_GRAPH_TENANT_ID", ""),
		ClientID:     getEnv("MS_GRAPH_CLIENT_ID", ""),
		ClientSecret: getEnv("MS_GRAPH_CLIENT_SECRET", ""),
		Mailbox:      getEnv("MS_MAILBOX", ""),
	}
}

// SofdConfig holds OS2sofd settings.
type SofdConfig struct {
	Kommune string
	APIKey  string
}

// LoadSofdConfig loads OS2sofd configuration from environment.
func LoadSofdConfig() *SofdConfig {
	return &SofdConfig{
		Kommune: getEnv("RPA_KOMMUNE", "nyborg"),
		APIKey:  getEnv("OS2SOFD_API_KEY", ""),
	}
}

// RollekatalogConfig holds OS2rollekatalog settings.
type RollekatalogConfig struct {
	Kommune string
	APIKey  string
}

// LoadRollekatalogConfig loads OS2rollekatalog configuration from environment.
func LoadRollekatalogConfig() *RollekatalogConfig {
	return &RollekatalogConfig{
		Kommune: getEnv("RPA_KOMMUNE", "nyborg"),
		APIKey:  getEnv("OS2ROLLEKATALOG_API_KEY", ""),
	}
}

// DatafordelerConfig holds Datafordeler certificate settings.
type DatafordelerConfig struct {
	PFXFile     string
	PFXPassword string
}

// LoadDatafordelerConfig loads Datafordeler configuration from environment.
func LoadDatafordelerConfig() *DatafordelerConfig {
	return &DatafordelerConfig{
		PFXFile:     getEnv("DATAFORDELER_PFX_FILE", ""),
		PFXPassword: getEnv("DATAFORDELER_PFX_PASSWORD", ""),
	}
}

// NexusConfig holds KMD Nexus settings.
type NexusConfig struct {
	Instance    string
	Environment string // "nexus" or "nexus-review"

	// Emergency backup targets for the beredskab job.
	EmergencyDrive string
	EmergencyCSV   string
}

// LoadNexusConfig loads Nexus configuration from environment.
func LoadNexusConfig() *NexusConfig {
	return &NexusConfig{
		Instance:       getEnv("NEXUS_INSTANCE", "nyborg"),
		Environment:    getEnv("NEXUS_ENVIRONMENT", "nexus"),
		EmergencyDrive: getEnv("NEXUS_EMERGENCY_DRIVE", ""),
		EmergencyCSV:   getEnv("NEXUS_EMERGENCY_CSV", ""),
	}
}

// ObjectStoreConfig holds the optional MinIO mirror for emergency backups.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// LoadObjectStoreConfig loads object store configuration from environment.
// An empty endpoint disables the mirror.
func LoadObjectStoreConfig() *ObjectStoreConfig {
	return &ObjectStoreConfig{
		Endpoint:  getEnv("RPA_MINIO_ENDPOINT", ""),
		AccessKey: getEnv("RPA_MINIO_ACCESS_KEY", ""),
		SecretKey: getEnv("RPA_MINIO_SECRET_KEY", ""),
		Bucket:    getEnv("RPA_MINIO_BUCKET", "nexus-beredskab"),
		UseSSL:    getEnvBool("RPA_MINIO_USE_SSL", true),
	}
}

// PrismeConfig holds the Prisme integration drop directory.
type PrismeConfig struct {
	ResourceCentralDir string
}

// LoadPrismeConfig loads Prisme configuration from environment.
func LoadPrismeConfig() *PrismeConfig {
	return &PrismeConfig{
		ResourceCentralDir: getEnv("PRISME_PATH_RESSOURCE_CENTRAL", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
