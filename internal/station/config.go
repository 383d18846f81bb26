package station

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadConfig reads and validates a StationConfig from a JSON file at
// path. The wire format is an exact camelCase schema that is also served
// and accepted over the HTTP API, so a bare json.Decoder that rejects
// unknown fields is used here rather than a generic app-config loader
// (viper et al.). An absent battery and a null one both decode to nil.
func LoadConfig(path string) (StationConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return StationConfig{}, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg StationConfig
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return StationConfig{}, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	if err := validateConfig(cfg); err != nil {
		return StationConfig{}, fmt.Errorf("invalid config file %q: %w", path, err)
	}

	return cfg, nil
}

func validateConfig(cfg StationConfig) error {
	if cfg.StationID == "" {
		return fmt.Errorf("stationId must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Chargers))
	for _, c := range cfg.Chargers {
		if c.ID == "" {
			return fmt.Errorf("charger id must not be empty")
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate charger id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Connectors == 0 {
			return fmt.Errorf("charger %q must declare at least one connector", c.ID)
		}
	}
	return nil
}
