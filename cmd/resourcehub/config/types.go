// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the resourcehub command's YAML configuration.
package config

import (
	"time"

	"github.com/AleutianAI/ResourceHub/pkg/logging"
	"github.com/AleutianAI/ResourceHub/services/resourcehub"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store/sqlstore"
)

// File is the on-disk layout of resourcehub.yaml.
type File struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port            int             `yaml:"port"`
	GinMode         string          `yaml:"gin_mode"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// RateLimitConfig throttles /v1 per client. RPS 0 disables.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	OpenTimeout  time.Duration `yaml:"open_timeout"`
}

type AuthConfig struct {
	// TokensFile empty disables authentication.
	TokensFile string `yaml:"tokens_file"`
}

type TelemetryConfig struct {
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

type SweeperConfig struct {
	Disabled bool          `yaml:"disabled"`
	Interval time.Duration `yaml:"interval"`
	// AuditRetention 0 keeps audit entries forever.
	AuditRetention time.Duration `yaml:"audit_retention"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration used when no file is given. A
// file is decoded on top of it, so omitted keys keep these values.
func DefaultConfig() File {
	return File{
		Server: ServerConfig{
			Port:            8080,
			GinMode:         "release",
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: sqlstore.DriverSQLite,
			DSN:    "resourcehub.db",
		},
		Telemetry: TelemetryConfig{
			Exporter: resourcehub.ExporterNone,
			Endpoint: "localhost:4317",
		},
		Sweeper: SweeperConfig{
			Interval:       time.Hour,
			AuditRetention: 365 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Service converts the file into the service configuration.
func (f File) Service() resourcehub.Config {
	return resourcehub.Config{
		Port:    f.Server.Port,
		GinMode: f.Server.GinMode,
		Database: sqlstore.Config{
			Driver:       f.Database.Driver,
			DSN:          f.Database.DSN,
			MaxOpenConns: f.Database.MaxOpenConns,
			OpenTimeout:  f.Database.OpenTimeout,
		},
		TokensFile:      f.Auth.TokensFile,
		RateLimitRPS:    f.Server.RateLimit.RPS,
		RateLimitBurst:  f.Server.RateLimit.Burst,
		CORSOrigins:     f.Server.CORSOrigins,
		OTelExporter:    f.Telemetry.Exporter,
		OTelEndpoint:    f.Telemetry.Endpoint,
		SweepInterval:   f.Sweeper.Interval,
		AuditRetention:  f.Sweeper.AuditRetention,
		DisableSweeper:  f.Sweeper.Disabled,
		ShutdownTimeout: f.Server.ShutdownTimeout,
	}
}

// Logger converts the logging section. Level has been checked by Validate.
func (f File) Logger() logging.Config {
	level, _ := logging.ParseLevel(f.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  f.Logging.Dir,
		Service: resourcehub.ServiceName,
		JSON:    f.Logging.JSON,
	}
}
