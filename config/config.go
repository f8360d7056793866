package config

// HTTPServer struct for HTTP Transport configuration
type HTTPServer struct {
	Port int `yaml:"port"`
}

// Transport is a configuration for Admin Transport: HTTP, gRPC or anything
type Transport struct {
	HTTP HTTPServer `yaml:"http"`
}

// MongoDB is the connection target where migrations run and
// where the applied-state records live.
type MongoDB struct {
	URI      string `yaml:"uri" validate:"required"`
	Database string `yaml:"database" validate:"required"`
}

// Migration holds runner-specific knobs.
type Migration struct {
	// Collection is the applied-state record set name.
	Collection string `yaml:"collection"`

	// Dir is where migration unit source files live. Used for
	// checksum recomputation and for scaffolding new units.
	Dir string `yaml:"dir"`
}

// Tracing config for Jaeger exporter, only used by the server command.
type Tracing struct {
	Disable        bool   `yaml:"disable"`
	JaegerEndpoint string `yaml:"jaegerEndpoint"`
}

// Config contains application config
type Config struct {
	Transport Transport `yaml:"transport"`
	MongoDB   MongoDB   `yaml:"mongodb" validate:"required"`
	Migration Migration `yaml:"migration"`
	Tracing   Tracing   `yaml:"tracing"`
}

const (
	DefaultCollection = "migration_records"
	DefaultDir        = "migrations"
)

// SetDefault fills optional fields so callers never see empty values.
func (c *Config) SetDefault() {
	if c.Migration.Collection == "" {
		c.Migration.Collection = DefaultCollection
	}

	if c.Migration.Dir == "" {
		c.Migration.Dir = DefaultDir
	}
}
