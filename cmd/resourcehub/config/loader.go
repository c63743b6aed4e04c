// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ResourceHub/pkg/logging"
	"github.com/AleutianAI/ResourceHub/services/resourcehub"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store/sqlstore"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RESOURCEHUB_"

// Load reads path (if non-empty), applies RESOURCEHUB_* environment
// overrides and validates the result.
//
// # Inputs
//
//   - path: YAML file. Empty means defaults plus environment only.
//
// # Outputs
//
//   - File: Effective configuration.
//   - error: Read, parse, override or validation failure.
//
// # Limitations
//
//   - Unknown YAML keys are rejected so typos surface at startup.
func Load(path string) (File, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return File{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return File{}, err
	}
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports settings the service would reject or misinterpret.
func (f File) Validate() error {
	var errs []error
	if f.Server.Port < 0 || f.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", f.Server.Port))
	}
	switch f.Server.GinMode {
	case "", "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.gin_mode %q (want debug, release or test)", f.Server.GinMode))
	}
	if f.Server.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("server.rate_limit.rps must not be negative"))
	}
	switch f.Database.Driver {
	case "", sqlstore.DriverSQLite, sqlstore.DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q (want sqlite or mysql)", f.Database.Driver))
	}
	if f.Database.Driver == sqlstore.DriverMySQL && f.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required for mysql"))
	}
	switch f.Telemetry.Exporter {
	case "", resourcehub.ExporterNone, resourcehub.ExporterOTLP, resourcehub.ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter %q (want otlp, stdout or none)", f.Telemetry.Exporter))
	}
	if f.Sweeper.AuditRetention < 0 {
		errs = append(errs, errors.New("sweeper.audit_retention must not be negative"))
	}
	if _, err := logging.ParseLevel(f.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	return errors.Join(errs...)
}

// =============================================================================
// Environment Overrides
// =============================================================================

type override struct {
	key   string
	apply func(cfg *File, v string) error
}

var overrides = []override{
	{"PORT", intVar(func(c *File) *int { return &c.Server.Port })},
	{"GIN_MODE", stringVar(func(c *File) *string { return &c.Server.GinMode })},
	{"CORS_ORIGINS", func(c *File, v string) error {
		c.Server.CORSOrigins = splitList(v)
		return nil
	}},
	{"RATE_LIMIT_RPS", func(c *File, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Server.RateLimit.RPS = f
		return nil
	}},
	{"RATE_LIMIT_BURST", intVar(func(c *File) *int { return &c.Server.RateLimit.Burst })},
	{"SHUTDOWN_TIMEOUT", durationVar(func(c *File) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"DB_DRIVER", stringVar(func(c *File) *string { return &c.Database.Driver })},
	{"DB_DSN", stringVar(func(c *File) *string { return &c.Database.DSN })},
	{"DB_MAX_OPEN_CONNS", intVar(func(c *File) *int { return &c.Database.MaxOpenConns })},
	{"TOKENS_FILE", stringVar(func(c *File) *string { return &c.Auth.TokensFile })},
	{"OTEL_EXPORTER", stringVar(func(c *File) *string { return &c.Telemetry.Exporter })},
	{"OTEL_ENDPOINT", stringVar(func(c *File) *string { return &c.Telemetry.Endpoint })},
	{"SWEEPER_DISABLED", boolVar(func(c *File) *bool { return &c.Sweeper.Disabled })},
	{"SWEEP_INTERVAL", durationVar(func(c *File) *time.Duration { return &c.Sweeper.Interval })},
	{"AUDIT_RETENTION", durationVar(func(c *File) *time.Duration { return &c.Sweeper.AuditRetention })},
	{"LOG_LEVEL", stringVar(func(c *File) *string { return &c.Logging.Level })},
	{"LOG_DIR", stringVar(func(c *File) *string { return &c.Logging.Dir })},
	{"LOG_JSON", boolVar(func(c *File) *bool { return &c.Logging.JSON })},
}

// applyEnv overlays environment variables. The standard
// OTEL_EXPORTER_OTLP_ENDPOINT is honored below RESOURCEHUB_OTEL_ENDPOINT.
func applyEnv(cfg *File, lookup func(string) (string, bool)) error {
	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && v != "" {
		cfg.Telemetry.Endpoint = strings.Trim(v, "\"' ")
	}
	var errs []error
	for _, o := range overrides {
		v, ok := lookup(EnvPrefix + o.key)
		if !ok {
			continue
		}
		// Sanitize: container runtimes sometimes pass quotes literally
		v = strings.Trim(v, "\"' ")
		if err := o.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, o.key, err))
		}
	}
	return errors.Join(errs...)
}

func stringVar(field func(*File) *string) func(*File, string) error {
	return func(c *File, v string) error {
		*field(c) = v
		return nil
	}
}

func intVar(field func(*File) *int) func(*File, string) error {
	return func(c *File, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolVar(field func(*File) *bool) func(*File, string) error {
	return func(c *File, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationVar(field func(*File) *time.Duration) func(*File, string) error {
	return func(c *File, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
