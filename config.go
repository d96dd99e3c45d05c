// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

package accounts

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/go-yaml/yaml"
	"github.com/signal-golang/textsecure-accounts/config"
	log "github.com/sirupsen/logrus"
)

// ReadConfig reads a YAML config file
func ReadConfig(fileName string) (*config.Config, error) {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig saves a config to a file
func WriteConfig(filename string, cfg *config.Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filename, b, 0600)
}

// LoadConfig reads the config file and makes sure
// that for unset values sane defaults are used
func LoadConfig(fileName string) (*config.Config, error) {
	log.Debugln("[textsecure] loading config", fileName)
	cfg, err := ReadConfig(fileName)
	if os.IsNotExist(err) {
		cfg = &config.Config{}
	} else if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// SetupLogging sets the logging verbosity level based on configuration
// and environment variables
func SetupLogging(cfg *config.Config) {
	loglevel := cfg.LogLevel
	if loglevel == "" {
		loglevel = os.Getenv("TEXTSECURE_LOGLEVEL")
	}

	switch strings.ToUpper(loglevel) {
	case "DEBUG":
		log.SetLevel(log.DebugLevel)
	case "INFO":
		log.SetLevel(log.InfoLevel)
	case "WARN":
		log.SetLevel(log.WarnLevel)
	case "ERROR":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
}
