// Package common provides small generic helpers shared across packages:
// YAML config loading and stable content hashing.
package common

import (
	"os"

	"gopkg.in/yaml.v3"
)

// MakeConfig reads the YAML file at filePath and unmarshals it into a new T.
// Any I/O or decode error is returned alongside a zero-value config; callers
// that treat missing config as "use defaults" should check os.IsNotExist
// themselves before calling this.
func MakeConfig[T any](filePath string) (*T, error) {
	config := new(T)

	if filePath == "" {
		return config, nil
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(raw, config); err != nil {
		return config, err
	}

	return config, nil
}
