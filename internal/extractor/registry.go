package extractor

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ankitpatel990/neuvox/internal/intel"
	"github.com/ankitpatel990/neuvox/patterns"
)

// RecognizerFile is the top-level YAML structure for a recognizer config
// file, embedded defaults and operator overrides alike.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig defines the patterns for one entity class. Operators
// can override a built-in recognizer by reusing its Name, or add new ones.
type RecognizerConfig struct {
	Name     string          `yaml:"name" json:"name"`
	Entity   string          `yaml:"entity" json:"entity"`
	Enabled  *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns []PatternConfig `yaml:"patterns,omitempty" json:"patterns,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer.
type PatternConfig struct {
	Name  string `yaml:"name" json:"name"`
	Regex string `yaml:"regex" json:"regex"`
}

// isEnabled defaults to true when the Enabled field is absent.
func (r *RecognizerConfig) isEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Recognizer is a compiled, ready-to-match pattern bound to one entity class.
type Recognizer struct {
	Name    string
	Class   string
	Pattern *regexp.Regexp
}

// DefaultRecognizers returns the built-in recognizer set parsed from the
// embedded recognizers.yaml. First layer in the merge chain.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.RecognizersYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded recognizers: %w", err)
	}
	return rf.Recognizers, nil
}

// ParseRecognizerFile parses recognizer YAML bytes.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) when the file does not exist, so a missing
// operator config is a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// MergeRecognizers layers recognizer lists: defaults first, then operator
// overrides, then per-deployment custom recognizers. Later layers replace
// earlier ones by Name; new names are appended.
func MergeRecognizers(layers ...[]RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}
	return merged
}

// FilterByClasses applies an optional class blacklist. Recognizers whose
// entity class appears in disabled are dropped.
func FilterByClasses(recognizers []RecognizerConfig, disabled []string) []RecognizerConfig {
	if len(disabled) == 0 {
		return recognizers
	}
	blocked := make(map[string]bool, len(disabled))
	for _, c := range disabled {
		blocked[entityToClass(c)] = true
		blocked[c] = true
	}
	var kept []RecognizerConfig
	for _, r := range recognizers {
		if !blocked[r.Entity] && !blocked[entityToClass(r.Entity)] {
			kept = append(kept, r)
		}
	}
	return kept
}

// CompileRecognizers converts recognizer configs into compiled Recognizers.
// Disabled recognizers are skipped; each pattern yields one Recognizer.
func CompileRecognizers(recognizers []RecognizerConfig) ([]Recognizer, error) {
	var compiled []Recognizer
	for _, rec := range recognizers {
		if !rec.isEnabled() {
			continue
		}
		for _, p := range rec.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			compiled = append(compiled, Recognizer{
				Name:    rec.Name,
				Class:   entityToClass(rec.Entity),
				Pattern: re,
			})
		}
	}
	return compiled, nil
}

// entityClassMap maps the SCREAMING_SNAKE entity names used in YAML to the
// internal class identifiers.
var entityClassMap = map[string]string{
	"UPI_ID":        intel.ClassUPI,
	"EMAIL_ADDRESS": intel.ClassEmail,
	"BANK_ACCOUNT":  intel.ClassBank,
	"IFSC_CODE":     intel.ClassIFSC,
	"PHONE_NUMBER":  intel.ClassPhone,
	"PHISHING_LINK": intel.ClassLink,
}

// entityToClass maps a YAML entity name to the internal class identifier.
// Unknown entities are lowercased so custom recognizers get a stable tag.
func entityToClass(entity string) string {
	if c, ok := entityClassMap[entity]; ok {
		return c
	}
	b := make([]byte, 0, len(entity))
	for i := 0; i < len(entity); i++ {
		ch := entity[i]
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		b = append(b, ch)
	}
	return string(b)
}
