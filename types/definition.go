package types

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// TrimAlgorithm selects how a raw signature is reduced to its length
// budget.
type TrimAlgorithm int

const (
	TrimNone TrimAlgorithm = iota
	TrimFirst
	TrimLast
	TrimRandom
	TrimWeightedGreedy
	TrimWeighted
)

var trimAlgorithmNames = map[string]TrimAlgorithm{
	"NONE":            TrimNone,
	"FIRST":           TrimFirst,
	"LAST":            TrimLast,
	"RANDOM":          TrimRandom,
	"WEIGHTED_GREEDY": TrimWeightedGreedy,
	"WEIGHTED":        TrimWeighted,
}

// ParseTrimAlgorithm parses a trim algorithm name, accepting both plain
// names ("RANDOM") and the legacy "TRIM_"-prefixed form.
func ParseTrimAlgorithm(s string) (TrimAlgorithm, error) {
	name := strings.ToUpper(strings.TrimPrefix(strings.ToUpper(s), "TRIM_"))
	algorithm, ok := trimAlgorithmNames[name]
	if !ok {
		return TrimNone, fmt.Errorf("%w: unknown trim algorithm: %q", ErrInvalidArgument, s)
	}
	return algorithm, nil
}

func (t TrimAlgorithm) String() string {
	for name, algorithm := range trimAlgorithmNames {
		if algorithm == t {
			return name
		}
	}
	return "NONE"
}

// FunctionFilter restricts which functions of the first binary take part
// in signature generation.
type FunctionFilter int

const (
	FilterNone FunctionFilter = iota
	FilterInclude
	FilterExclude
)

// Meta is a free-form key/value pair passed through to the emitted
// signature. Exactly one of the value fields is meaningful.
type Meta struct {
	Key         string `yaml:"key"`
	StringValue string `yaml:"string_value,omitempty"`
	IntValue    int64  `yaml:"int_value,omitempty"`
	BoolValue   bool   `yaml:"bool_value,omitempty"`
	Kind        string `yaml:"kind,omitempty"` // "string", "int" or "bool"
}

// SignatureDefinition carries all configuration for one signature
// generation run.
type SignatureDefinition struct {
	DetectionName        string         `yaml:"detection_name"`
	UniqueSignatureID    string         `yaml:"unique_signature_id,omitempty"`
	ItemIDs              []string       `yaml:"item_id,omitempty"`
	Tags                 []string       `yaml:"tag,omitempty"`
	Meta                 []Meta         `yaml:"meta,omitempty"`
	MinPieceLength       int            `yaml:"min_piece_length,omitempty"`
	DisableNibbleMasking bool           `yaml:"disable_nibble_masking,omitempty"`
	TrimAlgorithm        TrimAlgorithm  `yaml:"-"`
	TrimAlgorithmName    string         `yaml:"trim_algorithm,omitempty"`
	TrimLength           int64          `yaml:"trim_length,omitempty"`
	Variant              int32          `yaml:"variant,omitempty"`
	FunctionFilter       FunctionFilter `yaml:"-"`
	FilteredFunctions    []Address      `yaml:"filtered_function_address,omitempty"`
	SignatureGroups      []string       `yaml:"signature_group,omitempty"`
}

// LoadSignatureDefinition reads a signature definition from a YAML file.
func LoadSignatureDefinition(path string) (*SignatureDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	var definition SignatureDefinition
	if err := yaml.Unmarshal(data, &definition); err != nil {
		return nil, fmt.Errorf("failed to parse definition %s: %w", path, err)
	}
	if definition.TrimAlgorithmName != "" {
		algorithm, err := ParseTrimAlgorithm(definition.TrimAlgorithmName)
		if err != nil {
			return nil, err
		}
		definition.TrimAlgorithm = algorithm
	}
	return &definition, nil
}
