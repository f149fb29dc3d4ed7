package backend

import (
	"fmt"
	"strings"

	"estatecrm/internal/config"
)

// FromAppConfig picks the store settings out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedDemoData: appConfig.SeedDemoData,
	}
	if !c.Type.IsValid() {
		return Config{}, fmt.Errorf("data backend %q: must be one of %s", appConfig.DataBackend, strings.Join(BackendTypeNames(), ", "))
	}
	return c, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("data backend %q: must be one of %s", c.Type, strings.Join(BackendTypeNames(), ", "))
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("sqlite backend needs a database path")
	}
	return nil
}

// BackendTypeNames lists the accepted DATA_BACKEND values.
func BackendTypeNames() []string {
	return []string{MemoryBackend.String(), SQLiteBackend.String()}
}
