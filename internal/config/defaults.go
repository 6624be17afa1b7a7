package config

// Default configuration values.
const (
	DefaultStoreType    = "sqlite"
	DefaultStorePath    = "taskforge.db"
	DefaultPostgresPort = 5432
	DefaultProcedure    = "generate_task_code"
	DefaultMaxSessions  = 256
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "taskforge.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "taskforge.yml"

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKFORGE_"

func defaults() map[string]any {
	return map[string]any{
		"store.type":          DefaultStoreType,
		"store.path":          DefaultStorePath,
		"allocator.procedure": DefaultProcedure,
		"sessions.max_active": DefaultMaxSessions,
		"log.level":           DefaultLogLevel,
		"log.format":          DefaultLogFormat,
		"verbose":             false,
		"output":              DefaultOutput,
	}
}

// ApplyStoreDefaults applies defaults that depend on the store type.
func ApplyStoreDefaults(s *StoreConfig) {
	if s == nil {
		return
	}
	if s.Type == "postgres" && s.Port == 0 {
		s.Port = DefaultPostgresPort
	}
}
