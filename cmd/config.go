package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "shmorph"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName      = "output"
	seedsFlagName       = "seeds"
	featuresFlagName    = "features"
	runParallelFlagName = "parallel"
	roundsFlagName      = "rounds"
	timeoutFlagName     = "timeout"

	outputConfigKey      = "paths.results"
	seedsConfigKey       = "paths.seeds"
	noiseRulesConfigKey  = "paths.noise_rules"
	bashShellConfigKey   = "shells.bash"
	posixShellConfigKey  = "shells.posix"
	featuresConfigKey    = "run.features"
	runParallelConfigKey = "run.parallel"
	roundsConfigKey      = "run.rounds"
	timeoutConfigKey     = "run.timeout"
	maxOutputConfigKey   = "run.max_output"
	excerptConfigKey     = "run.excerpt_limit"
	seedgenCmdConfigKey  = "seedgen.command"
	seedgenCountKey      = "seedgen.count"
	monitorIntervalKey   = "monitor.interval"
	monitorGraceKey      = "monitor.grace"

	defaultResultsDir      = ".shmorph-results"
	defaultSeedsDir        = "seeds"
	defaultNoiseRulesFile  = "noise_rules.yaml"
	defaultBashShell       = "bash"
	defaultPosixShell      = "dash"
	defaultRunParallel     = 4
	defaultRounds          = 1
	defaultTimeout         = 10 * time.Second
	defaultMaxOutput       = 1 << 20
	defaultExcerptLimit    = 4096
	defaultSeedgenCount    = 50
	defaultMonitorInterval = 5 * time.Second
	defaultMonitorGrace    = 30 * time.Second

	envPrefix = "SHMORPH"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".shmorph.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputConfigKey, defaultResultsDir)
	viper.SetDefault(seedsConfigKey, defaultSeedsDir)
	viper.SetDefault(noiseRulesConfigKey, defaultNoiseRulesFile)
	viper.SetDefault(bashShellConfigKey, defaultBashShell)
	viper.SetDefault(posixShellConfigKey, defaultPosixShell)
	viper.SetDefault(featuresConfigKey, []string{})
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(roundsConfigKey, defaultRounds)
	viper.SetDefault(timeoutConfigKey, int64(defaultTimeout.Seconds()))
	viper.SetDefault(maxOutputConfigKey, defaultMaxOutput)
	viper.SetDefault(excerptConfigKey, defaultExcerptLimit)
	viper.SetDefault(seedgenCmdConfigKey, "")
	viper.SetDefault(seedgenCountKey, defaultSeedgenCount)
	viper.SetDefault(monitorIntervalKey, int64(defaultMonitorInterval.Seconds()))
	viper.SetDefault(monitorGraceKey, int64(defaultMonitorGrace.Seconds()))

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// configuredDuration reads a duration config key stored as seconds.
func configuredDuration(key string) time.Duration {
	return time.Duration(viper.GetInt64(key)) * time.Second
}
