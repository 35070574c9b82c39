package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/macarrie/relique/internal/schedule"
	"github.com/macarrie/relique/internal/types"
)

// LoadServer reads the server configuration file, stamps a fresh
// config version, loads every client and schedule file found under the
// configured directories and merges module catalog defaults into each
// client module. Hard failures (unreadable or invalid TOML) return an
// error; findings such as duplicate clients or a missing module
// catalog entry are returned as CheckErrors for the caller to grade.
func LoadServer(path string) (Config, []CheckError, error) {
	cfg := DefaultServer()
	if err := unmarshalFile(path, &cfg); err != nil {
		return Config{}, nil, err
	}

	version := uuid.New()
	cfg.ConfigVersion = &version

	base := filepath.Dir(path)
	clients, err := decodeDir[types.Client](resolve(base, cfg.ClientsCfgPath))
	if err != nil {
		return Config{}, nil, fmt.Errorf("config: load clients: %w", err)
	}
	schedules, err := decodeDir[schedule.Schedule](resolve(base, cfg.SchedulesCfgPath))
	if err != nil {
		return Config{}, nil, fmt.Errorf("config: load schedules: %w", err)
	}

	var checks []CheckError
	catalog := make(map[string]types.Module)
	for i := range clients {
		applyClientDefaults(&clients[i], cfg)
		clients[i].ConfigVersion = cfg.ConfigVersion
		clients[i].Schedules = schedules

		for j := range clients[i].Modules {
			mod := &clients[i].Modules[j]
			defaults, err := moduleDefaults(cfg.ModulesInstallPath, mod.ModuleType, catalog)
			if err != nil {
				checks = append(checks, CheckError{
					Key:   "modules.module_type",
					Level: SeverityCritical,
					Desc:  fmt.Sprintf("Could not load default parameters for module type '%s': %v", mod.ModuleType, err),
				})
				continue
			}
			mod.FillDefaults(defaults)
		}
	}

	cfg.Clients = clients
	cfg.Schedules = schedules

	checks = append(checks, Check(cfg)...)
	return cfg, checks, nil
}

// LoadClient reads the client daemon configuration file. The client
// has no directories to walk: its backup configuration arrives over
// the wire from the server.
func LoadClient(path string) (Config, error) {
	cfg := DefaultClient()
	if err := unmarshalFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyClientDefaults completes a client record so that, once pushed,
// it tells the client everything it needs to reach us back: clients
// that do not pin server_address/server_port inherit the server's
// public coordinates.
func applyClientDefaults(c *types.Client, cfg Config) {
	if c.Port == 0 {
		c.Port = types.DefaultClientPort
	}
	if c.ServerAddress == "" {
		c.ServerAddress = cfg.PublicAddress
	}
	if c.ServerPort == 0 {
		c.ServerPort = cfg.Port
	}
}

// moduleDefaults loads and caches the catalog entry for one module
// type, read from {install_path}/{module_type}/default.toml.
func moduleDefaults(installPath, moduleType string, cache map[string]types.Module) (types.Module, error) {
	if defaults, ok := cache[moduleType]; ok {
		return defaults, nil
	}
	var defaults types.Module
	if err := unmarshalFile(filepath.Join(installPath, moduleType, "default.toml"), &defaults); err != nil {
		return types.Module{}, err
	}
	cache[moduleType] = defaults
	return defaults, nil
}

// decodeDir parses every .toml file under dir, recursively, into one
// value per file. A missing directory yields an empty list.
func decodeDir[T any](dir string) ([]T, error) {
	var out []T
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".toml") {
			return nil
		}
		var item T
		if err := unmarshalFile(path, &item); err != nil {
			return err
		}
		out = append(out, item)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolve keeps absolute paths as they are and anchors relative ones
// next to the main configuration file.
func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func unmarshalFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
