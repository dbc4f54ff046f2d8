package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Path is a filesystem path from configuration. "~/" and $VARS are expanded
// when the config is decoded.
type Path string

type OutputConfig struct {
	Dir         Path   `mapstructure:"dir"`
	Suffix      string `mapstructure:"suffix"`
	TemplateDir Path   `mapstructure:"template_dir"`
}

type RenderConfig struct {
	CodeLanguage string `mapstructure:"code_language"`
}

type Config struct {
	XMLDir  Path         `mapstructure:"xml_dir"`
	Workers int          `mapstructure:"workers"`
	Output  OutputConfig `mapstructure:"output"`
	Render  RenderConfig `mapstructure:"render"`
}

// cacheBase returns the base cache directory for doxyrst.
// Checks XDG_CACHE_HOME, then ~/.cache, then the temp dir as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "doxyrst")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "doxyrst")
	}
	return filepath.Join(os.TempDir(), "doxyrst")
}

// InventoryPath returns the DuckDB symbol inventory for a Doxygen XML
// location. Like snapshots, each location gets its own file.
func InventoryPath(xmlDir string) string {
	return filepath.Join(cacheBase(), "inventory", pathKey(xmlDir)+".db")
}

// SnapshotDir returns the directory holding compressed tree snapshots.
func SnapshotDir() string {
	return filepath.Join(cacheBase(), "snapshots")
}

// SnapshotPath returns the snapshot file for a Doxygen XML directory. Each
// directory gets its own file keyed by its absolute path.
func SnapshotPath(xmlDir string) string {
	return filepath.Join(SnapshotDir(), pathKey(xmlDir)+".xml.zst")
}

func pathKey(xmlDir string) string {
	if abs, err := filepath.Abs(xmlDir); err == nil {
		xmlDir = abs
	}
	sum := sha256.Sum256([]byte(xmlDir))
	return fmt.Sprintf("%x", sum[:8])
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "doxyrst"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "doxyrst"))
	}

	viper.SetDefault("xml_dir", "xml")
	viper.SetDefault("workers", 4)
	viper.SetDefault("output.dir", "")
	viper.SetDefault("output.suffix", ".rst")
	viper.SetDefault("output.template_dir", "")
	viper.SetDefault("render.code_language", "C++")

	viper.SetEnvPrefix("DOXYRST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func stringToPathHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(Path("")) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return expandPath(data.(string)), nil
		}
		return data, nil
	}
}

func expandPath(p string) Path {
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return Path(os.ExpandEnv(p))
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToPathHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", config.Workers)
	}
	return &config, nil
}
