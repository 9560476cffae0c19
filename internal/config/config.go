// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package config loads the slave's YAML configuration: the serial-line
// identity, the transports to bring up, and the persistence backend for
// each table in the data model.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level slave configuration.
type Config struct {
	Slave SlaveConfig     `mapstructure:"slave"`
	RTU   *RTUConfig      `mapstructure:"rtu"`
	ASCII *ASCIIConfig    `mapstructure:"ascii"`
	TCP   *TCPConfig      `mapstructure:"tcp"`
	Model DataModelConfig `mapstructure:"model"`
	Log   LogConfig       `mapstructure:"log"`
}

// SlaveConfig identifies this instance on the bus.
type SlaveConfig struct {
	Address       byte `mapstructure:"address"`
	EnableDefResp bool `mapstructure:"enable_default_response_address"`

	// AllowExtFileRecords lifts the 0x270F record-number ceiling of the
	// file-record functions to the full 16-bit range.
	AllowExtFileRecords bool `mapstructure:"allow_extended_file_records"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`
}

// RTUConfig is the serial-line setup for the RTU transport.
type RTUConfig struct {
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"`
}

// ASCIIConfig is the serial-line setup for the ASCII transport, plus the
// instance's initial frame delimiter (the byte following the trailing CR;
// a master can change it at runtime via diagnostic sub-function 0x03).
type ASCIIConfig struct {
	Device    string `mapstructure:"device"`
	BaudRate  int    `mapstructure:"baud_rate"`
	DataBits  int    `mapstructure:"data_bits"`
	StopBits  int    `mapstructure:"stop_bits"`
	Parity    string `mapstructure:"parity"`
	Delimiter string `mapstructure:"delimiter"` // single character, defaults to "\n"
}

// TCPConfig is the listen address for the TCP transport.
type TCPConfig struct {
	Address string `mapstructure:"address"`
}

// DataModelConfig describes the size and persistence backend of each table.
type DataModelConfig struct {
	Coils            TableConfig  `mapstructure:"coils"`
	DiscreteInputs   TableConfig  `mapstructure:"discrete_inputs"`
	HoldingRegisters TableConfig  `mapstructure:"holding_registers"`
	InputRegisters   TableConfig  `mapstructure:"input_registers"`
	Files            []FileConfig `mapstructure:"files"`
}

// TableConfig sizes one flat coil/register table.
type TableConfig struct {
	Count       int               `mapstructure:"count"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// FileConfig sizes one extended-memory file.
type FileConfig struct {
	FileNumber  uint16            `mapstructure:"file_number"`
	Records     int               `mapstructure:"records"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig selects a bank's storage backend.
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap", "sql"
	Path string `mapstructure:"path"` // file path, used by "file"/"mmap"

	SQLDriver string `mapstructure:"sql_driver"`
	SQLDSN    string `mapstructure:"sql_dsn"`
}

// Load reads configuration from configFile, or from the conventional
// search paths if configFile is empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mbslave/")
		v.AddConfigPath("$HOME/.mbslave")
		v.AddConfigPath(".")
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("slave.address", 1)
	v.SetDefault("model.coils.persistence.type", "memory")
	v.SetDefault("model.discrete_inputs.persistence.type", "memory")
	v.SetDefault("model.holding_registers.persistence.type", "memory")
	v.SetDefault("model.input_registers.persistence.type", "memory")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.RTU != nil {
		fixupSerial(&cfg.RTU.BaudRate, &cfg.RTU.DataBits, &cfg.RTU.StopBits, &cfg.RTU.Parity)
	}
	if cfg.ASCII != nil {
		fixupSerial(&cfg.ASCII.BaudRate, &cfg.ASCII.DataBits, &cfg.ASCII.StopBits, &cfg.ASCII.Parity)
		if cfg.ASCII.Delimiter == "" {
			cfg.ASCII.Delimiter = "\n"
		}
	}

	return &cfg, nil
}

func fixupSerial(baud, data, stop *int, parity *string) {
	*parity = strings.ToUpper(*parity)
	if *baud == 0 {
		*baud = 9600
	}
	if *data == 0 {
		*data = 8
	}
	if *stop == 0 {
		*stop = 1
	}
	if *parity == "" {
		*parity = "N"
	}
}
