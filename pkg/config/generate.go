package config

import (
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// fileDefaults mirrors the default configuration in the shape users edit
type fileDefaults struct {
	Binary struct {
		Policy                string  `toml:"policy"`
		SampleBytes           int     `toml:"sample_bytes"`
		NonprintableThreshold float64 `toml:"nonprintable_threshold"`
	} `toml:"binary"`
	Discovery struct {
		Ignore []string `toml:"ignore"`
	} `toml:"discovery"`
	Loading struct {
		MaxFileSize   int64    `toml:"max_file_size"`
		StructureOnly []string `toml:"structure_only"`
		Retries       int      `toml:"retries"`
		RetryDelayMs  int      `toml:"retry_delay_ms"`
	} `toml:"loading"`
	Transform struct {
		Disabled      []string `toml:"disabled"`
		TruncateBytes int      `toml:"truncate_bytes"`
		NoCache       bool     `toml:"no_cache"`
	} `toml:"transform"`
	Limits map[string]int `toml:"limits"`
}

// GenerateConfigContent renders the default configuration as a TOML document
// with every value commented out, ready for users to selectively enable.
func GenerateConfigContent() (string, error) {
	var d fileDefaults
	d.Binary.Policy = "placeholder"
	d.Binary.SampleBytes = 8192
	d.Binary.NonprintableThreshold = 0.30
	d.Discovery.Ignore = []string{}
	d.Loading.MaxFileSize = 1 << 20
	d.Loading.StructureOnly = []string{}
	d.Loading.Retries = 3
	d.Loading.RetryDelayMs = 50
	d.Transform.Disabled = []string{}
	d.Transform.TruncateBytes = 0
	d.Transform.NoCache = false
	d.Limits = map[string]int{"discovery": 8, "glob": 16, "io": 12, "transform": 4}

	raw, err := toml.Marshal(d)
	if err != nil {
		return "", err
	}
	return commentOutConfigValues(string(raw)), nil
}

// commentOutConfigValues comments out every assignment line while keeping
// section headers and blank lines readable
func commentOutConfigValues(content string) string {
	lines := strings.Split(content, "\n")
	var result []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			result = append(result, line)
			continue
		}

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			result = append(result, line)
			continue
		}

		result = append(result, "# "+line)
	}

	return strings.Join(result, "\n")
}
