package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".gridcube"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for gridcube settings.
const envPrefix = "GRIDCUBE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("grid.strategy", DefaultGridStrategy)
	viperCfg.SetDefault("grid.d", DefaultGridD)
	viperCfg.SetDefault("grid.overlap", DefaultGridOverlap)
	viperCfg.SetDefault("grid.target_crs", DefaultTargetCRS)
	viperCfg.SetDefault("grid.res_m", DefaultResM)
	viperCfg.SetDefault("grid.id_column", DefaultGridIDColumn)

	viperCfg.SetDefault("job.time_frequency_months", DefaultFrequencyMonths)
	viperCfg.SetDefault("job.include_partial_window", false)
	viperCfg.SetDefault("job.epsg", DefaultEPSG)
	viperCfg.SetDefault("job.resolution", DefaultResolution)
	viperCfg.SetDefault("job.chunk_size", DefaultChunkSize)
	viperCfg.SetDefault("job.bands", DefaultBands)
	viperCfg.SetDefault("job.varname", DefaultVarName)
	viperCfg.SetDefault("job.mask_hook", DefaultHook)

	viperCfg.SetDefault("dispatch.backend", DefaultBackend)
	viperCfg.SetDefault("dispatch.workers", DefaultWorkers)
	viperCfg.SetDefault("dispatch.max_attempts", DefaultMaxAttempts)

	viperCfg.SetDefault("store.path", DefaultStorePath)
	viperCfg.SetDefault("store.initialize", DefaultInitialize)

	viperCfg.SetDefault("logging.debug", false)
}
