// Package config loads refmatch run settings from flags, environment
// variables, .env files and an optional YAML config file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/logging"
	"github.com/nconklindev/refmatch/internal/reconcile"
	"github.com/nconklindev/refmatch/internal/tableio"
	"github.com/nconklindev/refmatch/internal/types"
)

// EnvPrefix prefixes every refmatch environment variable.
const EnvPrefix = "REFMATCH"

// Config keys shared with command flags.
const (
	KeyConfig        = "config"
	KeyVerbose       = "verbose"
	KeyQuiet         = "quiet"
	KeyNoColor       = "no-color"
	KeyLogLevel      = "log-level"
	KeyLogFile       = "log-file"
	KeyRaw           = "raw"
	KeyReference     = "reference"
	KeyRawKeys       = "raw_keys"
	KeyReferenceKeys = "reference_keys"
	KeyFields        = "fields"
	KeyOutputs       = "outputs"
	KeyOverrides     = "overrides"
	KeyOutputDir     = "output_dir"
	KeyFormats       = "formats"
)

// Source is one input file.
type Source struct {
	Path      string `mapstructure:"path" yaml:"path"`
	Sheet     string `mapstructure:"sheet" yaml:"sheet,omitempty"`
	Transpose bool   `mapstructure:"transpose" yaml:"transpose,omitempty"`
}

// ReadOptions returns the read options for the source.
func (s Source) ReadOptions() tableio.ReadOptions {
	return tableio.ReadOptions{Sheet: s.Sheet, Transpose: s.Transpose}
}

// Config holds the settings of one run.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool

	ConfigFile string

	Raw           Source
	Reference     Source
	RawKeys       []string
	ReferenceKeys []string
	Fields        []string
	Outputs       []types.OutputConfig
	Overrides     string
	OutputDir     string
	Formats       []string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// Load reads configuration in order of precedence:
//  1. Command-line flags bound to v
//  2. Environment variables (REFMATCH_*)
//  3. .env and .env.local
//  4. Config file (--config, or .refmatch.yaml in . or $HOME)
//  5. Defaults
func Load(v *viper.Viper) (*Config, error) {
	loadEnvFiles()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyOutputDir, ".")
	v.SetDefault(KeyFormats, []string{string(types.FormatCSV), string(types.FormatXLSX)})

	configFile := v.GetString(KeyConfig)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".refmatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewIOError("read config", configFile, err)
		}
	}

	cfg := &Config{
		Verbose:    v.GetBool(KeyVerbose),
		Quiet:      v.GetBool(KeyQuiet),
		NoColor:    v.GetBool(KeyNoColor),
		ConfigFile: v.ConfigFileUsed(),

		Raw: Source{
			Path:      v.GetString(KeyRaw + ".path"),
			Sheet:     v.GetString(KeyRaw + ".sheet"),
			Transpose: v.GetBool(KeyRaw + ".transpose"),
		},
		Reference: Source{
			Path:      v.GetString(KeyReference + ".path"),
			Sheet:     v.GetString(KeyReference + ".sheet"),
			Transpose: v.GetBool(KeyReference + ".transpose"),
		},
		RawKeys:       List(v.Get(KeyRawKeys)),
		ReferenceKeys: List(v.Get(KeyReferenceKeys)),
		Fields:        List(v.Get(KeyFields)),
		Overrides:     v.GetString(KeyOverrides),
		OutputDir:     v.GetString(KeyOutputDir),
		Formats:       List(v.Get(KeyFormats)),

		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
	if file := v.GetString(KeyLogFile); file != "" {
		cfg.LogOutput = file
	}

	if err := v.UnmarshalKey(KeyOutputs, &cfg.Outputs); err != nil {
		return nil, errors.NewParseError("yaml", cfg.ConfigFile, "outputs", err)
	}
	return cfg, nil
}

// Validate reports missing required settings and malformed values.
func (c *Config) Validate() error {
	var missing []string
	if c.Raw.Path == "" {
		missing = append(missing, "raw file")
	}
	if c.Reference.Path == "" {
		missing = append(missing, "reference file")
	}
	if len(c.RawKeys) == 0 {
		missing = append(missing, "raw key columns")
	}
	if len(c.ReferenceKeys) == 0 {
		missing = append(missing, "reference key columns")
	}
	if len(c.Fields) == 0 {
		missing = append(missing, "target fields")
	}
	if len(c.Outputs) == 0 {
		missing = append(missing, "output configuration")
	}
	if len(missing) > 0 {
		return &errors.MissingInputError{Missing: missing}
	}

	if len(c.RawKeys) != len(c.ReferenceKeys) {
		return errors.NewValidationError(KeyReferenceKeys, c.ReferenceKeys,
			fmt.Sprintf("got %d columns for %d raw key columns", len(c.ReferenceKeys), len(c.RawKeys)))
	}
	if _, err := c.ExportFormats(); err != nil {
		return err
	}
	return nil
}

// Selection converts the column settings into a session selection.
func (c *Config) Selection() reconcile.Selection {
	return reconcile.Selection{
		RawKeys:       c.RawKeys,
		ReferenceKeys: c.ReferenceKeys,
		Fields:        c.Fields,
		Outputs:       c.Outputs,
	}
}

// ExportFormats parses Formats.
func (c *Config) ExportFormats() ([]types.SourceFormat, error) {
	formats := make([]types.SourceFormat, 0, len(c.Formats))
	for _, f := range c.Formats {
		switch format := types.SourceFormat(strings.ToLower(f)); format {
		case types.FormatCSV, types.FormatXLSX:
			formats = append(formats, format)
		default:
			return nil, errors.NewValidationError(KeyFormats, f, "must be csv or xlsx")
		}
	}
	return formats, nil
}

// ExportPlan returns where and how results are written.
func (c *Config) ExportPlan() (tableio.ExportPlan, error) {
	formats, err := c.ExportFormats()
	if err != nil {
		return tableio.ExportPlan{}, err
	}
	return tableio.ExportPlan{Dir: c.OutputDir, Formats: formats}, nil
}

// LogConfig builds the logger configuration. Level precedence:
//  1. --log-level flag or REFMATCH_LOG_LEVEL
//  2. -v/--verbose (debug)
//  3. -q/--quiet (warn)
//  4. LOG_LEVEL environment variable
//  5. info
func (c *Config) LogConfig() *logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Format = c.LogFormat
	cfg.Output = c.LogOutput
	cfg.NoColor = cfg.NoColor || c.NoColor
	cfg.Level = c.logLevel()
	cfg.AddCaller = cfg.Level == "debug" || cfg.Level == "trace"
	return cfg
}

func (c *Config) logLevel() string {
	switch {
	case c.LogLevel != "":
		return c.LogLevel
	case c.Verbose && c.Quiet:
		return "warn"
	case c.Verbose:
		return "debug"
	case c.Quiet:
		return "warn"
	default:
		return getEnvOrDefault("LOG_LEVEL", "info")
	}
}

// ParseOutputSpec parses an output flag value. Specs are FIELD=COLUMN; for
// replace with keep they may be FIELD=COLUMN:BACKUP. A new-column spec may
// omit the column to use the default name.
func ParseOutputSpec(mode types.OutputMode, keep bool, spec string) (types.OutputConfig, error) {
	field, column, _ := strings.Cut(spec, "=")
	out := types.OutputConfig{
		Field: strings.TrimSpace(field),
		Mode:  mode,
	}
	if out.Field == "" {
		return out, errors.NewValidationError("output", spec, "missing field name")
	}

	column = strings.TrimSpace(column)
	if mode == types.ModeReplace {
		if keep {
			column, out.Backup, _ = strings.Cut(column, ":")
			column = strings.TrimSpace(column)
			out.Backup = strings.TrimSpace(out.Backup)
			out.KeepOriginal = true
		}
		if column == "" {
			return out, errors.NewValidationError("output", spec, "replace needs FIELD=COLUMN")
		}
	}
	out.Column = column
	return out, nil
}

// List flattens a config value into a list of names. Strings are split on
// commas, so REFMATCH_RAW_KEYS="ID,Site" yields two columns.
func List(v any) []string {
	items := cast.ToStringSlice(v)
	if s, ok := v.(string); ok {
		items = []string{s}
	}

	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// loadEnvFiles loads .env files; .env.local is loaded after .env and does
// not override variables already set.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
