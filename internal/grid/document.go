// Package grid loads experiment configuration documents and enumerates the
// Cartesian product of their swept parameters.
//
// A document is a flat mapping from parameter name to either a scalar
// (fixed parameter) or a list of scalars (swept parameter). Key order is
// preserved: it defines the axis order of the grid and the order in which
// parameters are passed to the experiment process.
package grid

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExecutorKey is the reserved key holding executor settings.
const ExecutorKey = "executor"

// MetadataPrefix marks keys that are documentation, not parameters.
const MetadataPrefix = "_"

// EntryKind tags a document entry as fixed or swept.
type EntryKind int

const (
	// Fixed entries hold a single scalar applied to every run.
	Fixed EntryKind = iota
	// Swept entries hold a list of scalars; each run uses one of them.
	Swept
)

func (k EntryKind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Swept:
		return "swept"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry is one parameter of a configuration document.
type Entry struct {
	Name string
	Kind EntryKind

	// Value is set for Fixed entries.
	Value any

	// Values and Short are set for Swept entries. Short is an optional
	// display name used in output filenames.
	Values []any
	Short  string
}

// Label returns the name used for this entry in output filenames.
func (e Entry) Label() string {
	if e.Short != "" {
		return e.Short
	}
	return e.Name
}

// Executor holds the settings from the reserved "executor" block.
type Executor struct {
	OutputDir string            `json:"output_dir" yaml:"output_dir"`
	LogDir    string            `json:"log_dir" yaml:"log_dir"`
	SourceDir string            `json:"source_dir" yaml:"source_dir"`
	Env       map[string]string `json:"env" yaml:"env"`
}

var executorFields = map[string]bool{
	"output_dir": true,
	"log_dir":    true,
	"source_dir": true,
	"env":        true,
}

// Document is a parsed configuration. It is read once per invocation and
// never mutated afterwards.
type Document struct {
	Path     string
	Entries  []Entry
	Executor Executor
}

// Load reads and parses the configuration document at path. Both JSON and
// YAML are accepted.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("reading config file: %w", err)}
	}

	doc, err := Parse(data)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
		}
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Parse parses a configuration document from raw bytes. Valid JSON is
// decoded as JSON; anything else is parsed as YAML.
func Parse(data []byte) (*Document, error) {
	if json.Valid(data) {
		return parseJSON(data)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parsing config: %w", err)}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ConfigError{Err: errors.New("document is empty")}
	}

	top := resolveAlias(root.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, &ConfigError{Err: errors.New("top level must be an object")}
	}

	doc := &Document{}
	seen := make(map[string]bool, len(top.Content)/2)
	for i := 0; i+1 < len(top.Content); i += 2 {
		key := top.Content[i].Value
		value := resolveAlias(top.Content[i+1])

		if err := checkKey(seen, key); err != nil {
			return nil, err
		}

		switch {
		case key == ExecutorKey:
			exec, err := parseExecutor(value)
			if err != nil {
				return nil, err
			}
			doc.Executor = exec
		case strings.HasPrefix(key, MetadataPrefix):
			// Metadata, not a parameter.
		default:
			entry, err := parseEntry(key, value)
			if err != nil {
				return nil, err
			}
			doc.Entries = append(doc.Entries, entry)
		}
	}

	return doc, nil
}

func checkKey(seen map[string]bool, key string) error {
	if seen[key] {
		return configErrorf(key, "duplicate key")
	}
	seen[key] = true
	if key == KeyVars {
		return configErrorf(key, "reserved name: the swept parameter names are passed as --%s", KeyVars)
	}
	return nil
}

// FixedEntries returns the fixed entries in declaration order.
func (d *Document) FixedEntries() []Entry {
	return d.entriesOfKind(Fixed)
}

// SweptEntries returns the swept entries in declaration order.
func (d *Document) SweptEntries() []Entry {
	return d.entriesOfKind(Swept)
}

func (d *Document) entriesOfKind(kind EntryKind) []Entry {
	var out []Entry
	for _, e := range d.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Grid builds the grid spanned by the swept entries.
func (d *Document) Grid() (*Grid, error) {
	swept := d.SweptEntries()
	axes := make([]Axis, len(swept))
	for i, e := range swept {
		axes[i] = Axis{Name: e.Name, Short: e.Short, Values: e.Values}
	}
	g, err := New(axes)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = d.Path
		}
		return nil, err
	}
	return g, nil
}

func parseEntry(key string, node *yaml.Node) (Entry, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		v, err := decodeScalar(key, node)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Name: key, Kind: Fixed, Value: v}, nil

	case yaml.SequenceNode:
		values, err := decodeSweep(key, node)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Name: key, Kind: Swept, Values: values}, nil

	case yaml.MappingNode:
		return parseSweepObject(key, node)

	default:
		return Entry{}, configErrorf(key, "unsupported value")
	}
}

// parseSweepObject handles the {"values": [...], "short": "x"} form.
func parseSweepObject(key string, node *yaml.Node) (Entry, error) {
	entry := Entry{Name: key, Kind: Swept}
	hasValues := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		field := node.Content[i].Value
		value := resolveAlias(node.Content[i+1])
		switch field {
		case "values":
			if value.Kind != yaml.SequenceNode {
				return Entry{}, configErrorf(key, "values must be a list")
			}
			values, err := decodeSweep(key, value)
			if err != nil {
				return Entry{}, err
			}
			entry.Values = values
			hasValues = true
		case "short":
			if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!str" {
				return Entry{}, configErrorf(key, "short must be a string")
			}
			entry.Short = value.Value
		default:
			return Entry{}, configErrorf(key, "unknown field %q in sweep object", field)
		}
	}
	if !hasValues {
		return Entry{}, configErrorf(key, "object values must be a sweep with a values list")
	}
	return entry, nil
}

func decodeSweep(key string, node *yaml.Node) ([]any, error) {
	values := make([]any, 0, len(node.Content))
	for i, item := range node.Content {
		item = resolveAlias(item)
		if item.Kind != yaml.ScalarNode {
			return nil, configErrorf(key, "element %d: sweep values must be scalars", i)
		}
		v, err := decodeScalar(key, item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func decodeScalar(key string, node *yaml.Node) (any, error) {
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, configErrorf(key, "decoding value: %w", err)
	}
	if v == nil {
		return nil, configErrorf(key, "null values are not allowed")
	}
	return v, nil
}

func parseExecutor(node *yaml.Node) (Executor, error) {
	if node.Kind != yaml.MappingNode {
		return Executor{}, configErrorf(ExecutorKey, "must be an object")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		field := node.Content[i].Value
		if !executorFields[field] {
			return Executor{}, configErrorf(ExecutorKey, "unknown field %q", field)
		}
	}

	var exec Executor
	if err := node.Decode(&exec); err != nil {
		return Executor{}, configErrorf(ExecutorKey, "decoding: %w", err)
	}
	return exec, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}
