package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/marketprofile/database"
	"github.com/dnldd/marketprofile/fetch"
	"github.com/dnldd/marketprofile/indicator"
	"github.com/dnldd/marketprofile/market"
	"github.com/dnldd/marketprofile/profile"
	"github.com/dnldd/marketprofile/service"
	"github.com/dnldd/marketprofile/shared"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the configuration struct for the service.
type Config struct {
	// TickFile is the filepath to the tick data.
	TickFile string
	// TickFormat is the tick data format, csv or json.
	TickFormat string
	// TickTimezone is the IANA timezone of tick timestamps without zone information.
	TickTimezone string
	// ExchangeTimezone is the IANA timezone sessions are defined in.
	ExchangeTimezone string
	// ExchangeOffsetHours is the fixed exchange UTC offset used without an exchange timezone.
	ExchangeOffsetHours float64
	// SessionsFile is the optional yaml session time-table.
	SessionsFile string

	// TPOPeriodMinutes is the length of a TPO bin in minutes.
	TPOPeriodMinutes int
	// PriceStep is the TPO price discretization unit.
	PriceStep float64
	// VPOCStep is the VPOC rounding unit.
	VPOCStep float64
	// ValueAreaFraction is the fraction of TPOs the value area captures.
	ValueAreaFraction float64
	// InitialBalancePeriods is the number of bins forming the initial balance.
	InitialBalancePeriods int
	// SinglePrintThreshold is the minimum run of adjacent single print levels.
	SinglePrintThreshold int
	// SinglePrintMinSpan is the minimum span of a flagged single print region.
	SinglePrintMinSpan float64
	// PoorExtremeTPOThreshold is the minimum distinct bins at a poor extreme.
	PoorExtremeTPOThreshold int
	// RollingWindows are the rolling session VWAP windows.
	RollingWindows []string
	// ATRPeriod is the daily average true range period.
	ATRPeriod int

	// Workers is the maximum number of concurrent workers.
	Workers int
	// Strategies are the backtested strategies.
	Strategies []string
	// TickSize is the instrument tick size.
	TickSize float64

	// DBDriver is the summary store driver.
	DBDriver string
	// DBEndpoint is the rqlite endpoint.
	DBEndpoint string
	// DBUser is the rqlite user.
	DBUser string
	// DBPass is the rqlite user pass.
	DBPass string
	// PostgresDSN is the postgres connection string.
	PostgresDSN string

	// OutputCSV is the summary csv output path.
	OutputCSV string
	// DailyCSV is the daily summary csv output path.
	DailyCSV string
	// LevelsCSV is the key level csv output path.
	LevelsCSV string
	// OutcomesCSV is the trade outcome csv output path.
	OutcomesCSV string
	// RebuildAt is the daily rebuild time, in exchange time.
	RebuildAt string
	// LogLevel is the logging level.
	LogLevel string

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.TickFile == "" {
		errs = errors.Join(errs, fmt.Errorf("tick filepath cannot be an empty string"))
	}
	if cfg.TickFormat != fetch.FormatCSV && cfg.TickFormat != fetch.FormatJSON {
		errs = errors.Join(errs, fmt.Errorf("tick format must be csv or json, got '%s'", cfg.TickFormat))
	}
	if cfg.TPOPeriodMinutes <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tpo period must be positive, got %d", cfg.TPOPeriodMinutes))
	}
	if cfg.Workers < 0 {
		errs = errors.Join(errs, fmt.Errorf("workers cannot be negative, got %d", cfg.Workers))
	}
	if cfg.ATRPeriod < 0 {
		errs = errors.Join(errs, fmt.Errorf("atr period cannot be negative, got %d", cfg.ATRPeriod))
	}

	switch cfg.DBDriver {
	case "", database.DriverNone:
	case database.DriverRqlite:
		if cfg.DBEndpoint == "" {
			errs = errors.Join(errs, fmt.Errorf("db endpoint cannot be an empty string"))
		}
	case database.DriverPostgres:
		if cfg.PostgresDSN == "" {
			errs = errors.Join(errs, fmt.Errorf("postgres dsn cannot be an empty string"))
		}
	default:
		errs = errors.Join(errs, fmt.Errorf("unknown db driver '%s'", cfg.DBDriver))
	}

	if cfg.LogLevel != "" {
		_, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("parsing log level: %w", err))
		}
	}

	_, err := parseRollingWindows(cfg.RollingWindows)
	if err != nil {
		errs = errors.Join(errs, err)
	}

	return errs
}

// parseRollingWindows parses the provided rolling window sizes.
func parseRollingWindows(values []string) ([]int32, error) {
	windows := make([]int32, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		window, err := strconv.ParseInt(value, 10, 32)
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("rolling window must be a positive integer, got '%s'", value)
		}
		windows = append(windows, int32(window))
	}

	return windows, nil
}

// loadSessions reads a yaml session time-table, expanding environment variables.
func loadSessions(path string) ([]shared.SessionWindow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sessions file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var windows []shared.SessionWindow
	err = yaml.Unmarshal([]byte(expanded), &windows)
	if err != nil {
		return nil, fmt.Errorf("parsing sessions yaml: %w", err)
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("no sessions defined in %s", path)
	}

	return windows, nil
}

// serviceConfig resolves the service configuration.
func (cfg *Config) serviceConfig(cancel context.CancelFunc) (*service.ServiceConfig, error) {
	exchangeLoc, err := shared.LoadLocation(cfg.ExchangeTimezone, cfg.ExchangeOffsetHours)
	if err != nil {
		return nil, fmt.Errorf("resolving exchange timezone: %w", err)
	}

	tickLoc := exchangeLoc
	if cfg.TickTimezone != "" {
		tickLoc, err = shared.LoadLocation(cfg.TickTimezone, 0)
		if err != nil {
			return nil, fmt.Errorf("resolving tick timezone: %w", err)
		}
	}

	windows := shared.DefaultSessionWindows()
	if cfg.SessionsFile != "" {
		windows, err = loadSessions(cfg.SessionsFile)
		if err != nil {
			return nil, err
		}
	}

	rollingWindows, err := parseRollingWindows(cfg.RollingWindows)
	if err != nil {
		return nil, err
	}

	return &service.ServiceConfig{
		TickFile:     cfg.TickFile,
		TickFormat:   cfg.TickFormat,
		TickLocation: tickLoc,
		Segmenter: shared.SegmenterConfig{
			Windows:  windows,
			Location: exchangeLoc,
		},
		Profile: profile.Config{
			Period:                time.Duration(cfg.TPOPeriodMinutes) * time.Minute,
			PriceStep:             cfg.PriceStep,
			VPOCStep:              cfg.VPOCStep,
			ValueAreaFraction:     cfg.ValueAreaFraction,
			InitialBalancePeriods: cfg.InitialBalancePeriods,
			SinglePrintThreshold:  cfg.SinglePrintThreshold,
			SinglePrintMinSpan:    cfg.SinglePrintMinSpan,
			PoorExtremeThreshold:  cfg.PoorExtremeTPOThreshold,
		},
		Levels: market.LevelsConfig{
			Exclude:        market.DefaultExcludedSessions,
			RollingWindows: rollingWindows,
		},
		Workers:      cfg.Workers,
		Strategies:   cfg.Strategies,
		TickSize:     cfg.TickSize,
		ATRPeriod:    int32(cfg.ATRPeriod),
		SummariesCSV: cfg.OutputCSV,
		DailyCSV:     cfg.DailyCSV,
		LevelsCSV:    cfg.LevelsCSV,
		OutcomesCSV:  cfg.OutcomesCSV,
		Store: service.StoreConfig{
			Driver:      cfg.DBDriver,
			Endpoint:    cfg.DBEndpoint,
			User:        cfg.DBUser,
			Pass:        cfg.DBPass,
			PostgresDSN: cfg.PostgresDSN,
		},
		RebuildAt: cfg.RebuildAt,
		Cancel:    cancel,
	}, nil
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
// Environment values take precedence over the provided fallback default.
func (cfg *Config) registerFlag(name string, value interface{}, fallback string, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	if defValue == "" {
		defValue = fallback
	}
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Float64:
		var def float64
		if defValue != "" {
			def, _ = strconv.ParseFloat(defValue, 64)
		}
		flag.Float64Var(value.(*float64), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	defaults := profile.DefaultConfig()
	flags := []struct {
		name     string
		value    interface{}
		fallback string
		usage    string
	}{
		{"tickfile", &cfg.TickFile, "", "the tick data filepath"},
		{"tickformat", &cfg.TickFormat, fetch.FormatCSV, "the tick data format, csv or json"},
		{"ticktimezone", &cfg.TickTimezone, "", "the timezone of tick timestamps, defaults to the exchange timezone"},
		{"exchangetimezone", &cfg.ExchangeTimezone, "", "the exchange timezone"},
		{"exchangeoffsethours", &cfg.ExchangeOffsetHours, "", "the fixed exchange utc offset in hours"},
		{"sessionsfile", &cfg.SessionsFile, "", "the yaml session time-table filepath"},
		{"tpoperiodminutes", &cfg.TPOPeriodMinutes, strconv.Itoa(int(defaults.Period.Minutes())), "the tpo period in minutes"},
		{"pricestep", &cfg.PriceStep, formatDefault(defaults.PriceStep), "the tpo price step"},
		{"vpocstep", &cfg.VPOCStep, formatDefault(defaults.VPOCStep), "the vpoc rounding step"},
		{"valueareafraction", &cfg.ValueAreaFraction, formatDefault(defaults.ValueAreaFraction), "the value area fraction"},
		{"initialbalanceperiods", &cfg.InitialBalancePeriods, strconv.Itoa(defaults.InitialBalancePeriods), "the initial balance periods"},
		{"singleprintthreshold", &cfg.SinglePrintThreshold, strconv.Itoa(defaults.SinglePrintThreshold), "the single print run threshold"},
		{"singleprintminspan", &cfg.SinglePrintMinSpan, formatDefault(defaults.SinglePrintMinSpan), "the single print minimum span"},
		{"poorextremetpothreshold", &cfg.PoorExtremeTPOThreshold, strconv.Itoa(defaults.PoorExtremeThreshold), "the poor extreme tpo threshold"},
		{"rollingwindows", &cfg.RollingWindows, "30,365", "the rolling session vwap windows"},
		{"atrperiod", &cfg.ATRPeriod, strconv.Itoa(int(indicator.DefaultATRPeriod)), "the daily average true range period"},
		{"workers", &cfg.Workers, "4", "the maximum number of concurrent workers"},
		{"strategies", &cfg.Strategies, "", "the backtested strategies"},
		{"ticksize", &cfg.TickSize, "0.1", "the instrument tick size"},
		{"dbdriver", &cfg.DBDriver, database.DriverNone, "the summary store driver, none, rqlite or postgres"},
		{"dbendpoint", &cfg.DBEndpoint, "", "the rqlite endpoint"},
		{"dbuser", &cfg.DBUser, "", "the rqlite user"},
		{"dbpass", &cfg.DBPass, "", "the rqlite user pass"},
		{"postgresdsn", &cfg.PostgresDSN, "", "the postgres connection string"},
		{"outputcsv", &cfg.OutputCSV, "", "the session summary csv output filepath"},
		{"dailycsv", &cfg.DailyCSV, "", "the daily summary csv output filepath"},
		{"levelscsv", &cfg.LevelsCSV, "", "the key level csv output filepath"},
		{"outcomescsv", &cfg.OutcomesCSV, "", "the trade outcome csv output filepath"},
		{"rebuildat", &cfg.RebuildAt, "", "the daily rebuild time in exchange time, e.g. 22:15"},
		{"loglevel", &cfg.LogLevel, "info", "the logging level"},
	}

	// Register command line arguments using loaded environment variables as defaults.
	for _, f := range flags {
		err := cfg.registerFlag(f.name, f.value, f.fallback, f.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}

// formatDefault renders a float flag default.
func formatDefault(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
