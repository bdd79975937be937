// Package config loads simulator settings from an optional YAML file and
// command line flags. Flags win over the file, which wins over defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/eve"
	"github.com/alan-christopher/bb84sim/bb84/qubit"
)

// Eve describes an attack applied automatically when the channel is reached.
type Eve struct {
	// Fraction of channel qubits to intercept, in [0, 1].
	Fraction float64 `yaml:"fraction"`
	// Basis is "z", "x" or "random".
	Basis string `yaml:"basis"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Store configures where snapshots are kept.
type Store struct {
	// DB is a badger database directory. Empty disables the database.
	DB      string `yaml:"db"`
	Session string `yaml:"session"`
}

// Config is everything the simulator driver reads from the YAML file and
// flags.
type Config struct {
	Simulation bb84.Config `yaml:"simulation"`
	Eve        Eve         `yaml:"eve"`
	Log        Log         `yaml:"log"`
	Store      Store       `yaml:"store"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Simulation: bb84.DefaultConfig(),
		Eve:        Eve{Basis: "random"},
		Log:        Log{Level: "info", Format: "text"},
		Store:      Store{Session: "default"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return c, c.Validate()
}

// Validate returns an error if c is nonsensical.
func (c Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if c.Eve.Fraction < 0 || c.Eve.Fraction > 1 {
		return fmt.Errorf("eve fraction must be in [0, 1], got %v", c.Eve.Fraction)
	}
	if _, err := c.Eve.Policy(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Policy converts the configured basis into an attack policy.
func (e Eve) Policy() (eve.Policy, error) {
	switch strings.ToLower(e.Basis) {
	case "", "random":
		return eve.RandomBasis(), nil
	case "z":
		return eve.Fixed(qubit.Z), nil
	case "x":
		return eve.Fixed(qubit.X), nil
	}
	return eve.Policy{}, fmt.Errorf("unknown eve basis %q, want z, x or random", e.Basis)
}

// Logger builds a logrus logger as configured.
func (l Log) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(level)
	if l.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

// Flags holds the command line overrides for a Config.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath string
	n          int
	delta      float64
	check      int
	maxErrors  int
	extractor  string
	interval   string
	fraction   float64
	basis      string
	logLevel   string
	logFormat  string
	db         string
	session    string
}

// RegisterFlags adds the simulator's flags to fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "YAML config file")
	fs.IntVar(&f.n, "n", d.Simulation.N, "Target sifted key size; 2n bits must survive sifting")
	fs.Float64Var(&f.delta, "delta", d.Simulation.Delta, "Oversampling factor; Alice sends ceil((4+delta)*n) qubits")
	fs.IntVar(&f.check, "check", d.Simulation.EveCheckSubsetLen, "Number of sifted bits disclosed to estimate the error rate")
	fs.IntVar(&f.maxErrors, "max-errors", d.Simulation.MaxEveCheckErrors, "Most check errors tolerated before aborting")
	fs.StringVar(&f.extractor, "extractor", d.Simulation.Extractor, "Privacy amplification extractor: fold or toeplitz")
	fs.StringVar(&f.interval, "autoplay-interval", d.Simulation.AutoPlayInterval.String(), "Delay between auto-play steps")
	fs.Float64Var(&f.fraction, "eve-fraction", d.Eve.Fraction, "Fraction of channel qubits Eve intercepts")
	fs.StringVar(&f.basis, "eve-basis", d.Eve.Basis, "Eve's measurement basis: z, x or random")
	fs.StringVar(&f.logLevel, "log-level", d.Log.Level, "Log level")
	fs.StringVar(&f.logFormat, "log-format", d.Log.Format, "Log format: text or json")
	fs.StringVar(&f.db, "db", d.Store.DB, "Snapshot database directory")
	fs.StringVar(&f.session, "session", d.Store.Session, "Snapshot name within --db")
	return f
}

// Resolve loads the config file named by --config, if any, then applies every
// flag that was set explicitly.
func (f *Flags) Resolve() (Config, error) {
	c, err := Load(f.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	changed := f.fs.Changed
	sim := &c.Simulation
	if changed("n") {
		sim.N = f.n
	}
	if changed("delta") {
		sim.Delta = f.delta
	}
	if changed("check") {
		sim.EveCheckSubsetLen = f.check
	}
	if changed("max-errors") {
		sim.MaxEveCheckErrors = f.maxErrors
	}
	if changed("extractor") {
		sim.Extractor = f.extractor
	}
	if changed("autoplay-interval") {
		d, err := time.ParseDuration(f.interval)
		if err != nil {
			return Config{}, fmt.Errorf("parsing --autoplay-interval: %w", err)
		}
		sim.AutoPlayInterval = d
	}
	if changed("eve-fraction") {
		c.Eve.Fraction = f.fraction
	}
	if changed("eve-basis") {
		c.Eve.Basis = f.basis
	}
	if changed("log-level") {
		c.Log.Level = f.logLevel
	}
	if changed("log-format") {
		c.Log.Format = f.logFormat
	}
	if changed("db") {
		c.Store.DB = f.db
	}
	if changed("session") {
		c.Store.Session = f.session
	}
	return c, c.Validate()
}
