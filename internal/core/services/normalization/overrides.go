package normalization

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overridesFile is the on-disk shape of an ordinal override file:
//
//	ordinal:
//	  severe: 100
//	  negligible: 10
type overridesFile struct {
	Ordinal map[string]int `yaml:"ordinal"`
}

// LoadOrdinalOverrides reads extra ordinal anchors from a YAML file. A
// missing path is not an error; it simply means no overrides.
func LoadOrdinalOverrides(path string) (map[string]int, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading scale overrides: %w", err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scale overrides: %w", err)
	}
	return file.Ordinal, nil
}
