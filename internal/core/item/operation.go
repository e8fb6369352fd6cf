package item

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Input references an item an operation consumed.
type Input struct {
	Path        string `yaml:"path" json:"path"`
	Fingerprint string `yaml:"fingerprint" json:"fingerprint"`
}

func (in Input) String() string {
	return in.Path + "@" + Short(in.Fingerprint)
}

// Operation describes one action invocation: the action, its effective
// parameters and the items it read.
type Operation struct {
	ActionName    string         `yaml:"action_name" json:"action_name"`
	ActionVersion string         `yaml:"action_version,omitempty" json:"action_version,omitempty"`
	Arguments     []Input        `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	Options       map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// Fingerprint is the cache key for the operation. Input paths are excluded so
// moving an input does not invalidate results derived from it. Options that
// have no JSON form (NaN, channels) are an error.
func (op Operation) Fingerprint() (string, error) {
	bits, err := op.canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(bits)
	return hex.EncodeToString(sum[:]), nil
}

// Matches reports whether two operations describe the same computation:
// action, version, options and input fingerprints. Paths are ignored.
func (op Operation) Matches(other Operation) bool {
	a, err := op.canonical()
	if err != nil {
		return false
	}
	b, err := other.canonical()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// canonical encodes the identity of the operation. encoding/json sorts map
// keys, and numbers of equal value encode identically whether they were read
// back from YAML as int or float64.
func (op Operation) canonical() ([]byte, error) {
	inputs := make([]string, len(op.Arguments))
	for i, in := range op.Arguments {
		inputs[i] = in.Fingerprint
	}

	payload := struct {
		V       string         `json:"v"`
		Action  string         `json:"action"`
		Version string         `json:"version"`
		Options map[string]any `json:"options"`
		Inputs  []string       `json:"inputs"`
	}{
		V:       "kash:op:v1",
		Action:  op.ActionName,
		Version: op.ActionVersion,
		Options: op.Options,
		Inputs:  inputs,
	}

	bits, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("operation %s: options not encodable: %w", op.ActionName, err)
	}
	return bits, nil
}

// String renders the operation as name(path@fp, ...) with options.
func (op Operation) String() string {
	args := make([]string, len(op.Arguments))
	for i, in := range op.Arguments {
		args[i] = in.String()
	}

	var b strings.Builder
	b.WriteString(op.ActionName)
	b.WriteString("(")
	b.WriteString(strings.Join(args, ", "))
	b.WriteString(")")
	for _, k := range slices.Sorted(maps.Keys(op.Options)) {
		fmt.Fprintf(&b, " --%s=%v", k, op.Options[k])
	}
	return b.String()
}

func (op Operation) Clone() Operation {
	c := op
	c.Arguments = slices.Clone(op.Arguments)
	if op.Options != nil {
		c.Options = maps.Clone(op.Options)
	}
	return c
}

// Source records the operation that produced an item.
type Source struct {
	Operation   Operation `yaml:"operation" json:"operation"`
	OutputNum   int       `yaml:"output_num" json:"output_num"`
	Cacheable   bool      `yaml:"cacheable" json:"cacheable"`
	Fingerprint string    `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`
}
