package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Dump writes the resolved configuration as YAML, the format Load reads.
func Dump(w io.Writer, cfg Config) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	return encoder.Close()
}
