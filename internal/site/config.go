// Package site connects to a Frappe site: its site_config.json, its MariaDB
// database, and the document store used to create test records.
package site

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ftr/internal/bench"
)

// Default connection settings of a bench site
const (
	DefaultDBHost = "127.0.0.1"
	DefaultDBPort = 3306
	DBTypeMariaDB = "mariadb"
)

// Config is the merged common_site_config.json and site_config.json
type Config struct {
	DBName           string `json:"db_name"`
	DBUser           string `json:"db_user"`
	DBPassword       string `json:"db_password"`
	DBHost           string `json:"db_host"`
	DBPort           int    `json:"db_port"`
	DBType           string `json:"db_type"`
	DisableScheduler bool   `json:"-"`
	PauseScheduler   bool   `json:"-"`
}

// LoadConfig reads the site's configuration, applying common_site_config.json
// first and site_config.json on top
func LoadConfig(layout *bench.Layout, site string) (*Config, error) {
	if site == "" {
		return nil, errors.New("no site selected")
	}
	sitePath := layout.SitePath(site)
	if info, err := os.Stat(sitePath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("site %s does not exist in %s", site, layout.SitesPath())
	}

	merged := map[string]any{}
	for _, path := range []string{
		filepath.Join(layout.SitesPath(), "common_site_config.json"),
		filepath.Join(sitePath, "site_config.json"),
	} {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var values map[string]any
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for k, v := range values {
			merged[k] = v
		}
	}

	// re-encode so json tags do the field mapping
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid site config of %s: %w", site, err)
	}
	cfg.DisableScheduler = truthy(merged["disable_scheduler"])
	cfg.PauseScheduler = truthy(merged["pause_scheduler"])

	if cfg.DBName == "" {
		return nil, fmt.Errorf("site config of %s has no db_name", site)
	}
	if cfg.DBUser == "" {
		cfg.DBUser = cfg.DBName
	}
	if cfg.DBHost == "" {
		cfg.DBHost = DefaultDBHost
	}
	if cfg.DBPort == 0 {
		cfg.DBPort = DefaultDBPort
	}
	if cfg.DBType == "" {
		cfg.DBType = DBTypeMariaDB
	}
	return cfg, nil
}

// truthy follows python truthiness for the JSON values found in site configs
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0"
	}
	return false
}
