package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName       = "nvidiamon"
	configType       = "toml"
	defaultEnvPrefix = "NVIDIAMON"

	KeyRefreshRate  = "refreshrate"
	KeyProvider     = "provider"
	KeyTempFormat   = "tempformat"
	KeyLogLevel     = "log_level"
	KeyDebug        = "debug"
	KeyVerbose      = "verbose"
	KeyOnce         = "once"
	KeyProbe        = "probe"
	KeyOpenSettings = "open_settings"

	KeyHistoryEnabled      = "history.enabled"
	KeyHistoryDBPath       = "history.db_path"
	KeyHistoryBatchSize    = "history.batch_size"
	KeyHistoryBatchTimeout = "history.batch_timeout"

	DefaultLogLevel            = "warning"
	defaultHistoryBatchSize    = 20
	defaultHistoryBatchTimeout = 30

	maxProviderKind = 3
)

// Store is the settings store. Reads go through the current viper instance;
// Reload swaps in a freshly read one.
type Store struct {
	mu    sync.RWMutex
	v     *viper.Viper
	flags *pflag.FlagSet
	opts  options
}

// Load parses args, reads the config file and environment and validates the
// result.
func Load(args []string, opts ...Option) (*Store, error) {
	errFactory := errors.New()

	o := options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if path, _ := flags.GetString("config"); path != "" {
		o.configPath = path
	} else if o.configPath == "" {
		o.configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	s := &Store{flags: flags, opts: o}

	v, err := s.read()
	if err != nil {
		return nil, err
	}
	s.v = v

	logger.Debug().Str("config_file", v.ConfigFileUsed()).Msg("Config loaded")

	return s, nil
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet(configName, pflag.ContinueOnError)

	flags.String("config", "", "Path to the configuration file")
	flags.Int(KeyRefreshRate, 0, "Refresh interval in seconds")
	flags.Int(KeyProvider, 0, "Provider: 0 nvidia-smi+nvidia-settings, 1 nvidia-settings, 2 nvidia-smi, 3 optimus")
	flags.Int(KeyTempFormat, 0, "Temperature unit: 0 Celsius, 1 Fahrenheit")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.Bool(KeyDebug, false, "Enable debugging mode")
	flags.Bool(KeyVerbose, false, "Enable verbose logging")
	flags.Bool(KeyOnce, false, "Refresh once, print the readings and exit")
	flags.Bool(KeyProbe, false, "List GPUs found through NVML and exit")
	flags.Bool("open-settings", false, "Launch the NVIDIA settings application and exit")
	flags.Bool("history", false, "Record readings to the history database")

	return flags
}

// read builds a viper instance from all sources and validates it.
func (s *Store) read() (*viper.Viper, error) {
	errFactory := errors.New()

	v := viper.New()
	v.SetFs(s.opts.fs)

	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyHistoryEnabled, false)
	v.SetDefault(KeyHistoryDBPath, defaultHistoryPath())
	v.SetDefault(KeyHistoryBatchSize, defaultHistoryBatchSize)
	v.SetDefault(KeyHistoryBatchTimeout, defaultHistoryBatchTimeout)

	v.SetEnvPrefix(s.opts.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		KeyRefreshRate:    KeyRefreshRate,
		KeyProvider:       KeyProvider,
		KeyTempFormat:     KeyTempFormat,
		KeyLogLevel:       "log-level",
		KeyDebug:          KeyDebug,
		KeyVerbose:        KeyVerbose,
		KeyOnce:           KeyOnce,
		KeyProbe:          KeyProbe,
		KeyOpenSettings:   "open-settings",
		KeyHistoryEnabled: "history",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, s.flags.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetConfigType(configType)
	if s.opts.configPath != "" {
		v.SetConfigFile(s.opts.configPath)
	} else {
		v.SetConfigName(configName)
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	if err := validate(v); err != nil {
		return nil, err
	}

	return v, nil
}

func validate(v *viper.Viper) error {
	if _, err := requireInt(v, KeyRefreshRate, 1, 0); err != nil {
		return err
	}
	if _, err := requireInt(v, KeyProvider, 0, maxProviderKind); err != nil {
		return err
	}
	if _, err := requireInt(v, KeyTempFormat, 0, 1); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(v.GetString(KeyLogLevel)); err != nil {
		return err
	}

	return nil
}

// requireInt reads a required integer in [minValue, maxValue]; maxValue 0
// means unbounded.
func requireInt(v *viper.Viper, key string, minValue, maxValue int) (int, error) {
	errFactory := errors.New()

	if !v.IsSet(key) {
		return 0, errFactory.WithData(errors.ErrMissingSetting, key)
	}

	value := v.GetInt(key)
	if value < minValue || (maxValue > 0 && value > maxValue) {
		return 0, errFactory.WithData(errors.ErrInvalidSetting, struct {
			Key   string
			Value int
		}{key, value})
	}

	return value, nil
}

func defaultHistoryPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), configName, "history.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}

	return filepath.Join(dir, configName, "history.db")
}

// Reload re-reads all sources. On failure the previous values stay in
// effect.
func (s *Store) Reload() error {
	v, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.v = v
	s.mu.Unlock()

	return nil
}

func (s *Store) current() *viper.Viper {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.v
}

func (s *Store) RefreshRate() (int, error) {
	return requireInt(s.current(), KeyRefreshRate, 1, 0)
}

func (s *Store) ProviderKind() (int, error) {
	return requireInt(s.current(), KeyProvider, 0, maxProviderKind)
}

func (s *Store) TemperatureFormat() (int, error) {
	return requireInt(s.current(), KeyTempFormat, 0, 1)
}

// LogLevel resolves the effective level; debug and verbose win over
// log_level.
func (s *Store) LogLevel() logger.LogLevel {
	v := s.current()
	if v.GetBool(KeyDebug) {
		return logger.DebugLevel
	}
	if v.GetBool(KeyVerbose) {
		return logger.InfoLevel
	}

	level, err := logger.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return logger.WarnLevel
	}

	return level
}

func (s *Store) IsDebug() bool        { return s.current().GetBool(KeyDebug) }
func (s *Store) IsVerbose() bool      { return s.current().GetBool(KeyVerbose) }
func (s *Store) IsOnce() bool         { return s.current().GetBool(KeyOnce) }
func (s *Store) IsProbe() bool        { return s.current().GetBool(KeyProbe) }
func (s *Store) IsOpenSettings() bool { return s.current().GetBool(KeyOpenSettings) }

func (s *Store) History() History {
	v := s.current()

	return History{
		Enabled:      v.GetBool(KeyHistoryEnabled),
		DBPath:       v.GetString(KeyHistoryDBPath),
		BatchSize:    v.GetInt(KeyHistoryBatchSize),
		BatchTimeout: v.GetInt(KeyHistoryBatchTimeout),
	}
}

// ConfigFile returns the file the current values were read from, if any.
func (s *Store) ConfigFile() string {
	return s.current().ConfigFileUsed()
}
