package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// ProviderConfig stores provider-specific configuration as key-value pairs.
type ProviderConfig map[string]interface{}

// Config wraps viper and provides typed accessors.
type Config struct {
	v         *viper.Viper
	providers map[string]ProviderConfig
}

// Load reads a config file and prepares defaults. INI files may carry
// [providers.<name>] sections; other formats go through viper directly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRACKFETCH")
	v.AutomaticEnv()

	setDefaults(v)

	c := &Config{
		v:         v,
		providers: make(map[string]ProviderConfig),
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		cfg, err := loadINI(v, path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		loadProviders(cfg, c)
		return c, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	for name, raw := range v.GetStringMap("providers") {
		section, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		c.providers[name] = ProviderConfig(section)
	}
	return c, nil
}

// Default returns a config holding only the built-in defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{v: v, providers: make(map[string]ProviderConfig)}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DownloadDir", "./downloads")
	v.SetDefault("TempDir", "")
	v.SetDefault("MaxConcurrentDownloads", 3)
	v.SetDefault("AutoStart", true)
	v.SetDefault("PromoteIntervalMs", 500)
	v.SetDefault("PreferredQuality", "high")
	v.SetDefault("PreferredFormat", "mp3")
	v.SetDefault("FFmpegThreads", 4)
	v.SetDefault("SocketTimeout", 15)
	v.SetDefault("MaxConcurrentFragments", 4)
	v.SetDefault("HardwareAccel", false)
	v.SetDefault("HardwareAccelMode", "none")
	v.SetDefault("Proxy", "")
	v.SetDefault("YtDlpPath", "yt-dlp")
	v.SetDefault("FFmpegPath", "")
	v.SetDefault("ProcessorCommand", "python3")
	v.SetDefault("ProcessorScript", "./python_processor/audio_processor.py")
	v.SetDefault("EnableFallbackStrategy", true)
	v.SetDefault("CacheDir", "./cache")
	v.SetDefault("FileCacheMaxMB", 512)
	v.SetDefault("MetadataCacheTTLSec", 3600)
	v.SetDefault("Database", "cache.db")
	v.SetDefault("DBMaxOpenConns", 1)
	v.SetDefault("DBMaxIdleConns", 1)
	v.SetDefault("DBConnMaxLifetimeSec", 3600)
	v.SetDefault("DBSlowQueryMs", 200)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogSource", false)
	v.SetDefault("LogDir", "./log")
	v.SetDefault("ProviderTimeoutSec", 10)
	v.SetDefault("AggregateTimeoutSec", 15)
	v.SetDefault("LyricsTimeoutSec", 10)
	v.SetDefault("HTTPTimeoutSec", 30)
	v.SetDefault("FetchAttempts", 3)
	v.SetDefault("FetchRetryDelayMs", 2000)
	v.SetDefault("MaxFileSizeMB", 60)
	v.SetDefault("MaxLosslessFileSizeMB", 200)
	v.SetDefault("MaxDurationMin", 20)
	v.SetDefault("CoverMaxPx", 1000)
	v.SetDefault("SearchRatePerSecond", 2.0)
}

// GetString returns a string value.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an int value.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 returns a float64 value.
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool returns a bool value.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetIntSlice returns a slice of ints.
func (c *Config) GetIntSlice(key string) []int {
	return c.v.GetIntSlice(key)
}

// GetSeconds reads an integer key holding seconds as a duration.
func (c *Config) GetSeconds(key string) time.Duration {
	return time.Duration(c.v.GetInt(key)) * time.Second
}

// GetMillis reads an integer key holding milliseconds as a duration.
func (c *Config) GetMillis(key string) time.Duration {
	return time.Duration(c.v.GetInt(key)) * time.Millisecond
}

// GetMegabytes reads an integer key holding megabytes as a byte count.
func (c *Config) GetMegabytes(key string) int64 {
	return int64(c.v.GetInt(key)) * 1024 * 1024
}

// Set overrides a value at runtime.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// SetProvider overrides one provider setting at runtime.
func (c *Config) SetProvider(provider, key string, value interface{}) {
	cfg, ok := c.providers[provider]
	if !ok {
		cfg = make(ProviderConfig)
		c.providers[provider] = cfg
	}
	cfg[key] = value
}

// GetProviderConfig retrieves provider-specific configuration by name.
func (c *Config) GetProviderConfig(name string) (ProviderConfig, bool) {
	cfg, ok := c.providers[name]
	return cfg, ok
}

// ProviderNames returns the configured provider names.
func (c *Config) ProviderNames() []string {
	if len(c.providers) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProviderString returns a string value from provider configuration.
// Returns empty string if provider or key not found.
func (c *Config) GetProviderString(provider, key string) string {
	val, ok := c.providerValue(provider, key)
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", val)
}

// GetProviderInt returns an int value from provider configuration.
// Returns 0 if provider or key not found, or value cannot be converted.
func (c *Config) GetProviderInt(provider, key string) int {
	val, ok := c.providerValue(provider, key)
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		num, _ := strconv.Atoi(strings.TrimSpace(v))
		return num
	default:
		return 0
	}
}

// GetProviderIntOr returns an int value from provider configuration, or
// fallback when the key is absent.
func (c *Config) GetProviderIntOr(provider, key string, fallback int) int {
	if _, ok := c.providerValue(provider, key); !ok {
		return fallback
	}
	return c.GetProviderInt(provider, key)
}

// GetProviderBool returns a bool value from provider configuration.
// fallback is returned when the key is absent.
func (c *Config) GetProviderBool(provider, key string, fallback bool) bool {
	val, ok := c.providerValue(provider, key)
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return fallback
	}
}

func (c *Config) providerValue(provider, key string) (interface{}, bool) {
	cfg, ok := c.providers[provider]
	if !ok {
		return nil, false
	}
	val, ok := cfg[key]
	if !ok {
		// viper lowercases keys for non-ini sources
		val, ok = cfg[strings.ToLower(key)]
	}
	return val, ok
}

func loadINI(v *viper.Viper, path string) (*ini.File, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	for _, key := range cfg.Section("").Keys() {
		v.Set(key.Name(), key.Value())
	}

	return cfg, nil
}

func loadProviders(cfg *ini.File, c *Config) {
	const providerPrefix = "providers."

	for _, section := range cfg.Sections() {
		sectionName := section.Name()
		if sectionName == "" || sectionName == ini.DefaultSection {
			continue
		}
		if !strings.HasPrefix(sectionName, providerPrefix) {
			continue
		}

		name := strings.TrimPrefix(sectionName, providerPrefix)
		providerCfg := make(ProviderConfig)
		for _, key := range section.Keys() {
			providerCfg[key.Name()] = key.Value()
		}
		c.providers[name] = providerCfg
	}
}
