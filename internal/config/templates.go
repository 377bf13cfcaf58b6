package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Template renders DefaultConfig as landctl.toml, with one example principal.
func Template() (string, error) {
	def := DefaultConfig()
	raw := fileConfig{
		ID:                   def.ID,
		Addr:                 def.Addr,
		CorsOrigins:          def.CorsOrigins,
		InitialAdmin:         def.InitialAdmin,
		TrustPrincipalHeader: def.TrustPrincipalHeader,
		Principals: []PrincipalConfig{
			{ID: def.InitialAdmin, Token: "change-me-admin-token"},
		},
		JWT: JWTConfig{Issuer: def.ID},
		Snapshot: fileSnapshot{
			Driver:         def.Snapshot.Driver,
			Path:           def.Snapshot.Path,
			Interval:       def.Snapshot.Interval.String(),
			SaveOnShutdown: def.Snapshot.SaveOnShutdown,
			Keep:           def.Snapshot.Keep,
		},
		Feed: fileFeed{
			Enabled: def.Feed.Enabled,
			Buffer:  def.Feed.Buffer,
		},
	}
	data, err := toml.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
