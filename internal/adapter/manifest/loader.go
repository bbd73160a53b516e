package manifest

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Loader reads a manifest file from disk.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the manifest. It is called on every scan so edits
// are picked up without a restart.
func (l *Loader) Load() (*File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	data = expandTemplateVariables(data)

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse manifest yaml: %w", err)
	}
	return &f, nil
}

// expandTemplateVariables replaces {{NAME}} with the environment value of
// NAME, so secrets like client ids stay out of the file.
// Unset variables expand to an empty string.
func expandTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := templateVar.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
