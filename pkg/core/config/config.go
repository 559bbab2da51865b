//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package config provides configuration management for the sentinel using [Viper].
//
// Configuration can be provided via:
//   - a YAML configuration file
//   - environment variables with the SENTINEL_ prefix
//   - programmatic defaults
//
// # Configuration File
//
// By default the sentinel looks for sentinel-config.yaml in the current directory.
// Override the location using environment variables:
//
//	SENTINEL_CONFIG_PATH=/etc/sentinel
//	SENTINEL_CONFIG_FILENAME=production
//
// Example configuration file:
//
//	log:
//	  level: ".:info;sentinel.ledger:debug"
//	auth:
//	  apikey: s3cret
//	risk:
//	  window: 10m
//	  clamp: false
//	deception:
//	  latency:
//	    min: 100ms
//	    max: 400ms
//	policy:
//	  region: IN
//	audit:
//	  env:
//	    pod: HOSTNAME
//
// # Environment Variables
//
// Dots in key names become underscores:
//
//	SENTINEL_LOG_LEVEL=.:debug
//	SENTINEL_AUTH_APIKEY=s3cret
//	SENTINEL_RISK_CLAMP=true
//
// [Viper]: https://github.com/spf13/viper
package config

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/spf13/viper"
)

// Environment variable and default path constants for configuration loading.
const (
	// EnvVarPrefix is the prefix for all sentinel environment variables.
	EnvVarPrefix string = "SENTINEL"

	// ConfigPathEnv names the directory containing the configuration file.
	ConfigPathEnv string = "SENTINEL_CONFIG_PATH"

	// ConfigFileNameEnv names the configuration file (without extension).
	ConfigFileNameEnv string = "SENTINEL_CONFIG_FILENAME"

	// ConfigDefaultPath is the default directory to search for config files.
	ConfigDefaultPath string = "."

	// ConfigDefaultFilename is the default configuration file name (without extension).
	ConfigDefaultFilename string = "sentinel-config"
)

// Configuration keys for use with [VConfig].
const (
	logLevel string = "log.level"

	// APIKey is the shared secret partners and administrators present in X-API-Key.
	APIKey string = "auth.apikey"

	// ServerPort is the TCP port the decision point listens on.
	ServerPort string = "server.port"

	// RiskWindow is the trailing window used for access-frequency tracking.
	RiskWindow string = "risk.window"

	// RiskClamp caps partner scores at 100 when true.  Scores are unbounded by default.
	RiskClamp string = "risk.clamp"

	// DeceptionLatencyMin and DeceptionLatencyMax bound the simulated retrieval delay of
	// each synthetic record.
	DeceptionLatencyMin string = "deception.latency.min"
	DeceptionLatencyMax string = "deception.latency.max"

	// UsersFile optionally points at a YAML user registry replacing the built-in users.
	UsersFile string = "users.file"

	// PolicyRegion, PolicyPurpose and PolicyDays seed the active policy at startup.
	PolicyRegion  string = "policy.region"
	PolicyPurpose string = "policy.purpose"
	PolicyDays    string = "policy.days"

	// AccessLogPretty enables indented JSON in the forensic access log.
	AccessLogPretty string = "accesslog.pretty"

	// AuditEnv maps forensic record metadata keys to environment variable names:
	//
	//	audit:
	//	  env:
	//	    pod: HOSTNAME
	//	    region: AWS_REGION
	AuditEnv string = "audit.env"
)

var (
	once     sync.Once
	loadOnce sync.Once
	loadErr  error

	// VConfig is the global Viper instance.  It is initialized by [Init] or [Load]:
	//
	//	if config.VConfig.GetBool(config.RiskClamp) {
	//	    // scores are capped at 100
	//	}
	VConfig *viper.Viper
	logger  = logging.GetLogger("sentinel.config")
)

// Init sets up file paths, environment handling and defaults without reading the
// configuration file.  Subsequent calls are no-ops.
func Init() {
	once.Do(doInitialize)
}

func lookupEnv(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func getConfigPath() string {
	return lookupEnv(ConfigPathEnv, ConfigDefaultPath)
}

func getConfigFileName() string {
	return lookupEnv(ConfigFileNameEnv, ConfigDefaultFilename)
}

func doInitialize() {
	VConfig = viper.New()

	VConfig.AddConfigPath(getConfigPath())
	VConfig.SetConfigName(getConfigFileName())
	VConfig.SetConfigType("yaml")

	// keys such as 'risk.clamp' become 'SENTINEL_RISK_CLAMP'
	VConfig.SetEnvPrefix(EnvVarPrefix)
	VConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	VConfig.AutomaticEnv()

	VConfig.SetDefault(logLevel, ".:info")
	VConfig.SetDefault(APIKey, "SECRET123")
	VConfig.SetDefault(ServerPort, 5000)
	VConfig.SetDefault(RiskWindow, "10m")
	VConfig.SetDefault(RiskClamp, false)
	VConfig.SetDefault(DeceptionLatencyMin, "100ms")
	VConfig.SetDefault(DeceptionLatencyMax, "400ms")
	VConfig.SetDefault(UsersFile, "")
	VConfig.SetDefault(PolicyRegion, "IN")
	VConfig.SetDefault(PolicyPurpose, "data_sharing")
	VConfig.SetDefault(PolicyDays, 365)
	VConfig.SetDefault(AccessLogPretty, false)
}

// Load initializes configuration, reads the configuration file if present, and applies
// the configured log levels.  It is safe for concurrent use; only the first call does
// any work.
func Load() error {
	loadOnce.Do(func() {
		Init()

		// honour an early log level so config loading itself can be debugged
		if early := os.Getenv("SENTINEL_LOG_LEVEL"); early != "" {
			if err := logging.UpdateLogLevels(early); err != nil {
				loadErr = err
				return
			}
		}

		logger.SysDebugf("Loading configuration from %s/%s.yaml", getConfigPath(), getConfigFileName())
		if err := VConfig.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				logger.SysWarnf("error reading config; using defaults: %+v", err)
			} else {
				logger.SysDebugf("No config file found at %s/%s.yaml", getConfigPath(), getConfigFileName())
			}
		}

		level := VConfig.GetString(logLevel)
		if err := logging.UpdateLogLevels(level); err != nil {
			logger.SysErrorf("Failed updating log level %s: %+v", level, err)
			loadErr = err
			return
		}

		if logger.IsDebugEnabled() {
			VConfig.DebugTo(logger.Out())
		}
	})

	return loadErr
}

// ResetConfig discards all configuration and reloads defaults.  Intended for tests only.
func ResetConfig() {
	VConfig = nil
	once = sync.Once{}
	loadOnce = sync.Once{}
	loadErr = nil
	Init()
	_ = Load()
}

// GetAuditEnv resolves the audit.env section into metadata for forensic records.
// With HOSTNAME=pod-123 and the example above it returns {"pod": "pod-123"}.  Unset
// variables yield empty strings.
func GetAuditEnv() map[string]string {
	result := make(map[string]string)
	for key, envVar := range VConfig.GetStringMapString(AuditEnv) {
		result[key] = os.Getenv(envVar)
	}
	return result
}
