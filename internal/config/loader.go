package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvConfigPath names the environment variable overriding the config file path.
const EnvConfigPath = "SERPWALK_CONFIG"

// envKeys maps config keys to the environment variables that set them.
var envKeys = map[string]string{
	"email":        "EMAIL",
	"password":     "PASSWORD",
	"token":        "TOKEN",
	"mlx_base":     "MLX_BASE",
	"mlx_launcher": "MLX_LAUNCHER",
	"mlx_proxy":    "MLX_PROXY",
	"localhost":    "LOCALHOST",
	"log.level":    "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mlx_proxy", DefaultProxyURL)
	v.SetDefault("localhost", DefaultControlHost)
	v.SetDefault("browser_type", "mimic")
	v.SetDefault("operational_system", "windows")

	v.SetDefault("proxy.protocol", "http")
	v.SetDefault("proxy.session_type", "sticky")
	v.SetDefault("proxy.max_attempts", 2)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.automation", "puppeteer")

	v.SetDefault("search.max_attempts", 3)
	v.SetDefault("search.step_delay", "1s")

	v.SetDefault("output.backend", BackendCSV)

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.file", "serpwalk.log")
	v.SetDefault("log.timezone", DefaultTimezone)
	v.SetDefault("log.level", "info")

	v.SetDefault("http.timeout", DefaultHTTPTimeout.String())
	v.SetDefault("http.tls_profile", "go")
}

// Load reads .env (when present) into the process environment, then the
// JSON config file, then the environment. An empty path falls back to
// $SERPWALK_CONFIG and then config.json. A missing default file is not an
// error; a missing explicit one is ErrConfigNotFound.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path, explicit = DefaultConfigFile, false
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist) && explicit:
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
