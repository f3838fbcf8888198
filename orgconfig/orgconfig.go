// Package orgconfig loads the cmd/org CLI's runtime configuration: the
// agent roster and model selection that don't fit on a flag, plus the
// fixed environment-variable surface spec §6 defines for the process
// (SAFE_MODE, ORG_SESSION_DIR, DEBUG/ORG_DEBUG, ORG_UI_MODE,
// ORG_DYNAMIC_MEMORY, ORG_RUN_ID).
//
// Loading is layered the way the teacher's config package loaded
// provider settings: an optional YAML file read through spf13/viper,
// overlaid with environment variables, overlaid last by explicit CLI
// flags (applied by the caller after Load returns). Unlike the generic
// config.Load[T] contract, this surface's env var names are fixed by
// spec rather than derived from field names, so they're read directly
// rather than through viper's automatic env binding for every field.
package orgconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	UIModeTmux = "tmux"
	UIModeRich = "rich"

	DynamicMemoryOff    = "off"
	DynamicMemoryShadow = "shadow"
	DynamicMemoryAuto   = "auto"

	defaultSessionDir = ".org"
)

// Agent describes one roster entry: an agent id, the model it talks to,
// and an optional seed persona/system text.
type Agent struct {
	ID      string `mapstructure:"id"`
	Model   string `mapstructure:"model"`
	Persona string `mapstructure:"persona"`
}

// RuntimeConfig is the resolved configuration for one cmd/org process.
type RuntimeConfig struct {
	Agents []Agent `mapstructure:"agents"`

	SafeMode      bool
	SessionDir    string
	Debug         bool
	UIMode        string
	DynamicMemory string
	RunID         string
}

// Default returns the documented environment-variable defaults.
func Default() RuntimeConfig {
	return RuntimeConfig{
		SessionDir:    defaultSessionDir,
		UIMode:        UIModeRich,
		DynamicMemory: DynamicMemoryOff,
	}
}

// Load builds a RuntimeConfig from an optional YAML file (configPath; when
// empty, "org.yaml"/"org.yml" is searched for in ".", "$HOME/.org", and
// "/etc/org") and the fixed environment-variable surface. Flags, applied
// by the caller afterward, take final precedence.
func Load(configPath string) (*RuntimeConfig, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("org")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".org"))
		}
		v.AddConfigPath("/etc/org")
	}

	v.SetEnvPrefix("ORG")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if configPath != "" {
				return nil, fmt.Errorf("orgconfig: read %s: %w", configPath, err)
			}
			// An unreadable file found by search, rather than a file that
			// simply doesn't exist, is still worth surfacing.
			return nil, fmt.Errorf("orgconfig: read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("orgconfig: decode config: %w", err)
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *RuntimeConfig) {
	if boolEnv("SAFE_MODE") {
		cfg.SafeMode = true
	}
	if dir := os.Getenv("ORG_SESSION_DIR"); dir != "" {
		cfg.SessionDir = dir
	}
	if boolEnv("DEBUG") || boolEnv("ORG_DEBUG") {
		cfg.Debug = true
	}
	if mode := os.Getenv("ORG_UI_MODE"); mode == UIModeTmux || mode == UIModeRich {
		cfg.UIMode = mode
	}
	if mode := os.Getenv("ORG_DYNAMIC_MEMORY"); mode == DynamicMemoryOff || mode == DynamicMemoryShadow || mode == DynamicMemoryAuto {
		cfg.DynamicMemory = mode
	}
	if id := os.Getenv("ORG_RUN_ID"); id != "" {
		cfg.RunID = id
	}
}

func boolEnv(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	return v == "1" || strings.EqualFold(v, "true")
}
