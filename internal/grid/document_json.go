package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// jsonField is one member of a JSON object, kept in document order.
type jsonField struct {
	Name  string
	Value json.RawMessage
}

func parseJSON(data []byte) (*Document, error) {
	fields, err := decodeObject(data)
	if err != nil {
		if errors.Is(err, errNotObject) {
			return nil, &ConfigError{Err: errors.New("top level must be an object")}
		}
		return nil, &ConfigError{Err: fmt.Errorf("parsing config: %w", err)}
	}

	doc := &Document{}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := checkKey(seen, f.Name); err != nil {
			return nil, err
		}

		switch {
		case f.Name == ExecutorKey:
			exec, err := parseJSONExecutor(f.Value)
			if err != nil {
				return nil, err
			}
			doc.Executor = exec
		case strings.HasPrefix(f.Name, MetadataPrefix):
			// Metadata, not a parameter.
		default:
			entry, err := parseJSONEntry(f.Name, f.Value)
			if err != nil {
				return nil, err
			}
			doc.Entries = append(doc.Entries, entry)
		}
	}
	return doc, nil
}

var errNotObject = errors.New("not an object")

// decodeObject splits a JSON object into its members without losing their
// order. A repeated member name is an error.
func decodeObject(data []byte) ([]jsonField, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	var fields []jsonField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("member %q: %w", name, err)
		}
		fields = append(fields, jsonField{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func jsonKind(raw json.RawMessage) byte {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func parseJSONEntry(key string, raw json.RawMessage) (Entry, error) {
	switch jsonKind(raw) {
	case '[':
		values, err := decodeJSONSweep(key, raw)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Name: key, Kind: Swept, Values: values}, nil
	case '{':
		return parseJSONSweepObject(key, raw)
	default:
		v, err := decodeJSONScalar(key, raw)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Name: key, Kind: Fixed, Value: v}, nil
	}
}

func parseJSONSweepObject(key string, raw json.RawMessage) (Entry, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return Entry{}, configErrorf(key, "decoding sweep object: %w", err)
	}

	entry := Entry{Name: key, Kind: Swept}
	seen := make(map[string]bool, len(fields))
	hasValues := false
	for _, f := range fields {
		if seen[f.Name] {
			return Entry{}, configErrorf(key, "duplicate field %q in sweep object", f.Name)
		}
		seen[f.Name] = true

		switch f.Name {
		case "values":
			if jsonKind(f.Value) != '[' {
				return Entry{}, configErrorf(key, "values must be a list")
			}
			values, err := decodeJSONSweep(key, f.Value)
			if err != nil {
				return Entry{}, err
			}
			entry.Values = values
			hasValues = true
		case "short":
			if jsonKind(f.Value) != '"' {
				return Entry{}, configErrorf(key, "short must be a string")
			}
			if err := json.Unmarshal(f.Value, &entry.Short); err != nil {
				return Entry{}, configErrorf(key, "decoding short: %w", err)
			}
		default:
			return Entry{}, configErrorf(key, "unknown field %q in sweep object", f.Name)
		}
	}
	if !hasValues {
		return Entry{}, configErrorf(key, "object values must be a sweep with a values list")
	}
	return entry, nil
}

func decodeJSONSweep(key string, raw json.RawMessage) ([]any, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, configErrorf(key, "decoding sweep: %w", err)
	}
	values := make([]any, 0, len(items))
	for i, item := range items {
		if k := jsonKind(item); k == '[' || k == '{' {
			return nil, configErrorf(key, "element %d: sweep values must be scalars", i)
		}
		v, err := decodeJSONScalar(key, item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// decodeJSONScalar yields the same Go types as the YAML path: string, bool,
// int for integers that fit, uint64 above that, and float64 otherwise.
func decodeJSONScalar(key string, raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, configErrorf(key, "decoding value: %w", err)
	}

	switch x := v.(type) {
	case nil:
		return nil, configErrorf(key, "null values are not allowed")
	case string, bool:
		return x, nil
	case json.Number:
		return decodeNumber(key, x)
	default:
		return nil, configErrorf(key, "unsupported value")
	}
}

func decodeNumber(key string, n json.Number) (any, error) {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i >= math.MinInt && i <= math.MaxInt {
			return int(i), nil
		}
		return i, nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, configErrorf(key, "number %s out of range", s)
	}
	return f, nil
}

func parseJSONExecutor(raw json.RawMessage) (Executor, error) {
	if jsonKind(raw) != '{' {
		return Executor{}, configErrorf(ExecutorKey, "must be an object")
	}
	fields, err := decodeObject(raw)
	if err != nil {
		return Executor{}, configErrorf(ExecutorKey, "decoding: %w", err)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !executorFields[f.Name] {
			return Executor{}, configErrorf(ExecutorKey, "unknown field %q", f.Name)
		}
		if seen[f.Name] {
			return Executor{}, configErrorf(ExecutorKey, "duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}

	var exec Executor
	if err := json.Unmarshal(raw, &exec); err != nil {
		return Executor{}, configErrorf(ExecutorKey, "decoding: %w", err)
	}
	return exec, nil
}
