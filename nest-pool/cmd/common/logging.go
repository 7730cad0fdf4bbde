package common

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/config"
)

const (
	cfgLogFile  = "log.file"
	cfgLogFmt   = "log.format"
	cfgLogLevel = "log.level"
	// Custom log levels for modules are not supported by cobra.
	// Use the config file instead.
)

// loggingFlags has the logging flags.
var loggingFlags = flag.NewFlagSet("", flag.ContinueOnError)

func initLogging() error {
	cfg := config.GlobalConfig.Common.Log

	logLevel := logging.LevelWarn
	moduleLevels := map[string]logging.Level{}
	for k, v := range cfg.Level {
		var lvl logging.Level
		if err := lvl.Set(v); err != nil {
			return fmt.Errorf("log level for '%s': %w", k, err)
		}
		if k == "default" {
			logLevel = lvl
			continue
		}
		moduleLevels[k] = lvl
	}

	var logFmt logging.Format
	if cfg.Format != "" {
		if err := logFmt.Set(cfg.Format); err != nil {
			return err
		}
	}

	var w io.Writer = os.Stdout
	if cfg.File != "" {
		logFile := normalizePath(cfg.File)

		var err error
		if w, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err != nil {
			return err
		}
	}

	return logging.Initialize(w, logFmt, logLevel, moduleLevels)
}

func initLoggingFlags() {
	logFmt := logging.FmtLogfmt
	logLevel := logging.LevelWarn

	loggingFlags.String(cfgLogFile, "", "log file")
	loggingFlags.Var(&logFmt, cfgLogFmt, "log format")
	loggingFlags.Var(&logLevel, cfgLogLevel, "log level")

	_ = viper.BindPFlags(loggingFlags)
}
