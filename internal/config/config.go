package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the bootstrap, loaded from the flat
// INI-style bootstrap.conf baked into the container image.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Paths  PathsConfig  `mapstructure:"paths"`
	Wait   WaitConfig   `mapstructure:"wait"`
}

// ServerConfig mirrors the [server] section of bootstrap.conf.
type ServerConfig struct {
	Hostname     string `mapstructure:"hostname"`
	Domain       string `mapstructure:"domain"`
	ServicePort  string `mapstructure:"service_port"`
	Letsencrypt  bool   `mapstructure:"letsencrypt"`
	PortMappings string `mapstructure:"port_mappings"`
}

// PathsConfig holds the well-known filesystem locations used by the
// bootstrap. Every path has a default matching the container image layout
// and can be overridden per-container via the SEAFILE_ env prefix.
type PathsConfig struct {
	TopDir        string `mapstructure:"top_dir"`
	SharedDir     string `mapstructure:"shared_dir"`
	SSLDir        string `mapstructure:"ssl_dir"`
	GeneratedDir  string `mapstructure:"generated_dir"`
	TemplatesDir  string `mapstructure:"templates_dir"`
	NginxSitesDir string `mapstructure:"nginx_sites_dir"`
	ScriptsDir    string `mapstructure:"scripts_dir"`
}

// WaitConfig bounds the readiness polling loops for the two external
// dependencies the bootstrap blocks on.
type WaitConfig struct {
	MySQLHost     string        `mapstructure:"mysql_host"`
	MySQLPort     int           `mapstructure:"mysql_port"`
	MySQLAttempts int           `mapstructure:"mysql_attempts"`
	NginxHost     string        `mapstructure:"nginx_host"`
	NginxPort     int           `mapstructure:"nginx_port"`
	NginxAttempts int           `mapstructure:"nginx_attempts"`
	Interval      time.Duration `mapstructure:"interval"`
}

// HTTPS reports whether generated configs should use https, which is the
// case exactly when letsencrypt provisioning is enabled.
func (s ServerConfig) HTTPS() bool {
	return s.Letsencrypt
}

// Load reads bootstrap.conf from path, then overlays environment variables
// with the SEAFILE_ prefix (e.g. SEAFILE_SERVER_HOSTNAME). A missing or
// unparseable file is an error: the bootstrap has no server identity
// without it.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SEAFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Hostname == "" {
		return fmt.Errorf("server.hostname is required")
	}
	if c.Server.Domain == "" {
		c.Server.Domain = c.Server.Hostname
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the [server] keys so the SEAFILE_ env overlay
	// applies even when a key is absent from bootstrap.conf.
	v.SetDefault("server.hostname", "")
	v.SetDefault("server.domain", "")
	v.SetDefault("server.service_port", "")
	v.SetDefault("server.letsencrypt", false)
	v.SetDefault("server.port_mappings", "")

	v.SetDefault("paths.top_dir", "/opt/seafile")
	v.SetDefault("paths.shared_dir", "/shared/seafile")
	v.SetDefault("paths.ssl_dir", "/shared/ssl")
	v.SetDefault("paths.generated_dir", "/bootstrap/generated")
	v.SetDefault("paths.templates_dir", "/templates")
	v.SetDefault("paths.nginx_sites_dir", "/etc/nginx/sites-enabled")
	v.SetDefault("paths.scripts_dir", "/scripts")

	v.SetDefault("wait.mysql_host", "127.0.0.1")
	v.SetDefault("wait.mysql_port", 3306)
	v.SetDefault("wait.mysql_attempts", 300)
	v.SetDefault("wait.nginx_host", "127.0.0.1")
	v.SetDefault("wait.nginx_port", 80)
	v.SetDefault("wait.nginx_attempts", 10)
	v.SetDefault("wait.interval", 2*time.Second)
}
