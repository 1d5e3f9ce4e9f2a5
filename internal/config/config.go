package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/uidpulse/internal/ai"
	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/ingest"
)

// Global configuration structure.
type Global struct {
	// Analytics
	ForecastPeriods    int     `mapstructure:"forecast_periods" yaml:"forecast_periods" validate:"gte=0,lte=120"`
	ResampleFrequency  string  `mapstructure:"resample_frequency" yaml:"resample_frequency" validate:"oneof=D W ME QE YE"`
	EnrolmentThreshold float64 `mapstructure:"enrolment_threshold" yaml:"enrolment_threshold" validate:"gte=0"`
	BiometricThreshold float64 `mapstructure:"biometric_threshold" yaml:"biometric_threshold" validate:"gte=0"`
	SelectedRegion     string  `mapstructure:"selected_region" yaml:"selected_region" validate:"required"`
	LoadBasis          string  `mapstructure:"load_basis" yaml:"load_basis" validate:"oneof=month record"`

	// Data
	DataDir     string            `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
	DatasetDirs map[string]string `mapstructure:"dataset_dirs" yaml:"dataset_dirs" validate:"dive,keys,oneof=enrolment demographic biometric,endkeys,required"`

	// Narrative runtime
	AIProvider            string  `mapstructure:"ai_provider" yaml:"ai_provider" validate:"omitempty,oneof=openrouter ollama gemini"`
	AIModel               string  `mapstructure:"ai_model" yaml:"ai_model"`
	APIKey                string  `mapstructure:"api_key" yaml:"api_key" secret:"true"`
	GeminiAPIKey          string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key" secret:"true"`
	OllamaHost            string  `mapstructure:"ollama_host" yaml:"ollama_host" validate:"omitempty,url"`
	MaxTokens             int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	Temperature           float64 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	NarrativeRatePerMin   float64 `mapstructure:"narrative_rate_per_min" yaml:"narrative_rate_per_min" validate:"gte=0"`
	NarrativePromptTokens int     `mapstructure:"narrative_prompt_tokens" yaml:"narrative_prompt_tokens" validate:"gte=0"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec" validate:"gte=0"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts" validate:"gte=0"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms" validate:"gte=0"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms" validate:"gte=0"`

	// Service
	ListenAddr    string `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required"`
	CacheTTLSec   int    `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec" validate:"gte=0"`
	ExportWorkers int    `mapstructure:"export_workers" yaml:"export_workers" validate:"gte=1,lte=64"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
}

func defaults() map[string]any {
	return map[string]any{
		"forecast_periods":        3,
		"resample_frequency":      string(analytics.FreqMonth),
		"enrolment_threshold":     1000.0,
		"biometric_threshold":     500.0,
		"selected_region":         dataset.AllRegions,
		"load_basis":              string(analytics.LoadPerMonth),
		"data_dir":                "./data",
		"dataset_dirs":            defaultDatasetDirs(),
		"ai_provider":             "",
		"ai_model":                "",
		"api_key":                 "",
		"gemini_api_key":          "",
		"ollama_host":             "http://127.0.0.1:11434",
		"max_tokens":              600,
		"temperature":             0.4,
		"narrative_rate_per_min":  30.0,
		"narrative_prompt_tokens": 2000,
		"http_timeout_sec":        60,
		"retry_max_attempts":      3,
		"retry_base_delay_ms":     500,
		"retry_max_delay_ms":      4000,
		"listen_addr":             ":8080",
		"cache_ttl_sec":           300,
		"export_workers":          4,
		"log_level":               "info",
		"log_format":              "text",
	}
}

func defaultDatasetDirs() map[string]string {
	out := map[string]string{}
	for k, d := range ingest.DefaultDirs() {
		out[k.String()] = d
	}
	return out
}

// DefaultPath returns ~/.uidpulse/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".uidpulse", "config.yaml"), nil
}

// Default returns the configuration with every default applied.
func Default() *Global {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("UIDPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DatasetDirs == nil {
		c.DatasetDirs = defaultDatasetDirs()
	}
	return &c, nil
}

// Save writes the configuration to cfgFile, or to DefaultPath when empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Validate checks value ranges. Errors name the yaml key.
func Validate(c *Global) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: %v fails %s", fieldPath(fe), fe.Value(), rule))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// fieldPath drops the struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// Set assigns a value by yaml key. dataset_dirs entries use "dataset_dirs.<kind>".
// The result is validated before it is kept.
func (c *Global) Set(key, val string) error {
	next := *c
	next.DatasetDirs = make(map[string]string, len(c.DatasetDirs))
	for k, d := range c.DatasetDirs {
		next.DatasetDirs[k] = d
	}
	if err := next.assign(strings.ToLower(strings.TrimSpace(key)), val); err != nil {
		return err
	}
	if err := Validate(&next); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Global) assign(key, val string) error {
	if kind, ok := strings.CutPrefix(key, "dataset_dirs."); ok {
		k, err := dataset.ParseKind(kind)
		if err != nil {
			return err
		}
		c.DatasetDirs[k.String()] = val
		return nil
	}
	rv := reflect.ValueOf(c).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if name, _, _ := strings.Cut(rt.Field(i).Tag.Get("yaml"), ","); name != key {
			continue
		}
		f := rv.Field(i)
		switch f.Kind() {
		case reflect.String:
			f.SetString(val)
		case reflect.Int:
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for %s: %q", key, val)
			}
			f.SetInt(int64(n))
		case reflect.Float64:
			x, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for %s: %q", key, val)
			}
			f.SetFloat(x)
		default:
			return fmt.Errorf("%s cannot be set directly", key)
		}
		return nil
	}
	return fmt.Errorf("unknown key: %s", key)
}

// Keys lists the settable yaml keys in declaration order.
func Keys() []string {
	rt := reflect.TypeOf(Global{})
	out := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		name, _, _ := strings.Cut(rt.Field(i).Tag.Get("yaml"), ",")
		out = append(out, name)
	}
	return out
}

// Masked returns a copy with secret fields obscured, for display.
func (c *Global) Masked() *Global {
	out := *c
	rv := reflect.ValueOf(&out).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).Tag.Get("secret") == "true" {
			rv.Field(i).SetString(Mask(rv.Field(i).String()))
		}
	}
	return &out
}

// Mask hides all but the edges of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

// Analytics converts the analytics keys to an engine config.
func (c *Global) Analytics() analytics.Config {
	basis, err := analytics.ParseLoadBasis(c.LoadBasis)
	if err != nil {
		basis = analytics.LoadPerMonth
	}
	freq, err := analytics.ParseFrequency(c.ResampleFrequency)
	if err != nil {
		freq = analytics.FreqMonth
	}
	return analytics.Config{
		ForecastPeriods:    c.ForecastPeriods,
		Frequency:          freq,
		EnrolmentThreshold: c.EnrolmentThreshold,
		BiometricThreshold: c.BiometricThreshold,
		LoadBasis:          basis,
	}
}

// Dirs resolves dataset_dirs to per-kind folders, falling back to the defaults.
func (c *Global) Dirs() map[dataset.Kind]string {
	out := ingest.DefaultDirs()
	for k := range out {
		if v := c.DatasetDirs[k.String()]; v != "" {
			out[k] = v
		}
	}
	return out
}

// Runtime returns the runtime knobs for the configured provider.
func (c *Global) Runtime() ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	}
	if c.AIProvider == ai.ProviderGemini {
		rc.APIKey = c.GeminiAPIKey
	}
	return rc
}

// CacheTTL is cache_ttl_sec as a duration.
func (c *Global) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSec) * time.Second }
