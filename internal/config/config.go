package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"

	"seisqc/internal/domain"
	"seisqc/internal/util"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for a seisqc run or server.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Services Services `yaml:"services"`
	Logging  Logging  `yaml:"logging"`
	Run      Run      `yaml:"run"`
	Metrics  Metrics  `yaml:"metrics"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
}

// Storage holds paths of the local archive.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Data sources for Services.Availability and Services.DataSelect.
const (
	SourceFDSN  = "fdsn"
	SourceLocal = "local"
)

// Services selects and configures the availability and sample backends.
type Services struct {
	Availability    string        `yaml:"availability"` // fdsn or local
	DataSelect      string        `yaml:"dataselect"`   // fdsn or local
	StationURL      string        `yaml:"station_url"`
	DataSelectURL   string        `yaml:"dataselect_url"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Run describes what to compute.
type Run struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"` // defaults to one day after start
	// Metrics lists metric names or family names; a family name stands for
	// every metric of that family.
	Metrics   []string  `yaml:"metrics"`
	Selection Selection `yaml:"selection"`
}

// Selection restricts which channels are considered. Fields accept FDSN
// wildcards.
type Selection struct {
	Network  string `yaml:"network"`
	Station  string `yaml:"station"`
	Location string `yaml:"location"`
	Channel  string `yaml:"channel"`
}

// Metrics configures the metric library.
type Metrics struct {
	// LibraryVersion overrides the version reported by the calculators.
	LibraryVersion string `yaml:"library_version"`
}

// Output selects where results are written. Empty paths are skipped.
type Output struct {
	CSVPath     string `yaml:"csv_path"` // gzip when ending in .gz
	ParquetPath string `yaml:"parquet_path"`
	SQLite      bool   `yaml:"sqlite"` // save into Storage.SQLitePath
	SummaryPath string `yaml:"summary_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Services: Services{
			Availability: SourceFDSN,
			DataSelect:   SourceFDSN,
			Timeout:      60 * time.Second,
		},
		Logging: Logging{Level: "info", Format: "text"},
		Server:  Server{Host: "0.0.0.0", GRPCPort: 50051},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over the
// defaults, then applies environment variable overrides. An empty path
// yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SEISQC_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SEISQC_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("SEISQC_STATION_URL"); v != "" {
		cfg.Services.StationURL = v
	}

	if v := os.Getenv("SEISQC_DATASELECT_URL"); v != "" {
		cfg.Services.DataSelectURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	sources := []struct{ name, value string }{
		{"services.availability", c.Services.Availability},
		{"services.dataselect", c.Services.DataSelect},
	}
	for _, src := range sources {
		name := src.name
		switch src.value {
		case SourceFDSN:
		case SourceLocal:
			if c.Storage.DataDir == "" {
				result = multierror.Append(result, fmt.Errorf("%s is local but storage.data_dir is empty", name))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("%s: unknown source %q", name, src.value))
		}
	}
	if c.Services.Availability == SourceLocal && c.Storage.SQLitePath == "" {
		result = multierror.Append(result, errors.New("local availability needs storage.sqlite_path for epoch metadata"))
	}
	if c.Output.SQLite && c.Storage.SQLitePath == "" {
		result = multierror.Append(result, errors.New("output.sqlite is set but storage.sqlite_path is empty"))
	}
	if c.Services.RateLimitPerMin < 0 {
		result = multierror.Append(result, errors.New("services.rate_limit_per_min must not be negative"))
	}
	if c.Services.RateLimitBurst < 0 {
		result = multierror.Append(result, errors.New("services.rate_limit_burst must not be negative"))
	}
	if c.Services.Timeout < 0 {
		result = multierror.Append(result, errors.New("services.timeout must not be negative"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	if c.Metrics.LibraryVersion != "" {
		if _, err := version.NewVersion(c.Metrics.LibraryVersion); err != nil {
			result = multierror.Append(result, fmt.Errorf("metrics.library_version: %w", err))
		}
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort))
	}

	return result.ErrorOrNil()
}

// ValidateRun checks the run section in addition to Validate.
func (c *Config) ValidateRun() error {
	var result *multierror.Error
	if err := c.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := c.Range(); err != nil {
		result = multierror.Append(result, err)
	}
	if len(c.Run.Metrics) == 0 {
		result = multierror.Append(result, errors.New("run.metrics is empty"))
	}
	return result.ErrorOrNil()
}

// ---------------------------------------------------------------------------
// Run context
// ---------------------------------------------------------------------------

// legacyBefore is the first metric library release that decodes
// state-of-health flags of locally supplied data reliably.
var legacyBefore = version.Must(version.NewVersion("1.1.0"))

// IsLegacyLibrary reports whether library version v predates 1.1.0.
func IsLegacyLibrary(v string) (bool, error) {
	parsed, err := version.NewVersion(v)
	if err != nil {
		return false, fmt.Errorf("metric library version: %w", err)
	}
	return parsed.LessThan(legacyBefore), nil
}

// Range parses run.start and run.end. A missing end means one day after
// start.
func (c *Config) Range() (domain.TimeRange, error) {
	if c.Run.Start == "" {
		return domain.TimeRange{}, errors.New("run.start is empty")
	}
	start, err := util.ParseTime(c.Run.Start)
	if err != nil {
		return domain.TimeRange{}, fmt.Errorf("run.start: %w", err)
	}
	end := start.Add(util.Day)
	if c.Run.End != "" {
		if end, err = util.ParseTime(c.Run.End); err != nil {
			return domain.TimeRange{}, fmt.Errorf("run.end: %w", err)
		}
	}
	return domain.NewTimeRange(start, end)
}

// Families maps the requested metric names to their families using catalog,
// which maps every known metric name to its family. A family name selects
// every metric of that family.
func Families(names []string, catalog map[string]domain.Family) (domain.FamilyRequest, []string, error) {
	byFamily := make(map[domain.Family][]string)
	for name, f := range catalog {
		byFamily[f] = append(byFamily[f], name)
	}

	req := domain.FamilyRequest{}
	seen := make(map[string]struct{})
	add := func(f domain.Family, name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		req[f] = append(req[f], name)
	}

	var result *multierror.Error
	for _, name := range names {
		name = strings.TrimSpace(name)
		if f, ok := catalog[name]; ok {
			add(f, name)
			continue
		}
		if f, err := domain.ParseFamily(name); err == nil {
			members := append([]string(nil), byFamily[f]...)
			sort.Strings(members)
			for _, m := range members {
				add(f, m)
			}
			continue
		}
		result = multierror.Append(result, fmt.Errorf("unknown metric %q", name))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, nil, err
	}

	accepted := make([]string, 0, len(seen))
	for name := range seen {
		accepted = append(accepted, name)
	}
	sort.Strings(accepted)
	return req, accepted, nil
}

// BuildRunContext converts the run section into a domain.RunContext.
// libraryVersion is the version of the metric library in use, unless
// metrics.library_version overrides it.
func (c *Config) BuildRunContext(catalog map[string]domain.Family, libraryVersion string) (domain.RunContext, error) {
	rng, err := c.Range()
	if err != nil {
		return domain.RunContext{}, err
	}
	req, accepted, err := Families(c.Run.Metrics, catalog)
	if err != nil {
		return domain.RunContext{}, err
	}
	if len(req) == 0 {
		return domain.RunContext{}, errors.New("no metrics requested")
	}

	if c.Metrics.LibraryVersion != "" {
		libraryVersion = c.Metrics.LibraryVersion
	}
	legacy, err := IsLegacyLibrary(libraryVersion)
	if err != nil {
		return domain.RunContext{}, err
	}

	dataSelectURL := c.Services.DataSelectURL
	if c.Services.DataSelect == SourceLocal {
		dataSelectURL = c.Storage.DataDir
	}

	return domain.NewRunContext(domain.RunOptions{
		Range:           rng,
		Families:        req,
		AcceptedMetrics: accepted,
		LocalData:       c.Services.DataSelect == SourceLocal,
		StationMetadata: c.Services.Availability == SourceFDSN,
		LibraryVersion:  libraryVersion,
		LegacyLibrary:   legacy,
		DataSelectURL:   dataSelectURL,
	}), nil
}
