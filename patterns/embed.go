// Package patterns provides the embedded default entity-recognizer
// definitions. The YAML format is the registry format understood by
// internal/extractor: one recognizer per entity class, each with one or
// more named regex patterns.
package patterns

import _ "embed"

//go:embed recognizers.yaml
var recognizersYAML []byte

// RecognizersYAML returns the embedded default recognizer definitions.
func RecognizersYAML() []byte { return recognizersYAML }
