// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workeropts parses the pipeline options a runner hands to a
// worker on its command line.
//
// The options arrive as one JSON object. Comments and trailing commas
// are tolerated (the text is passed through JSONC stripping first) so
// that options can also be kept in hand-edited files. Some runners
// wrap the real options in one extra {"options": {...}} level; Parse
// removes it.
package workeropts

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
)

// Keys under which runners list modules the worker should load, in
// lookup order.
const (
	RegisteredModulesKey       = "beam:option:registered_node_modules:v1"
	LegacyRegisteredModulesKey = "registered_node_modules"
)

// nestingKey is the wrapper some runners add around the options.
const nestingKey = "options"

// Options is a parsed pipeline options object.
type Options struct {
	values map[string]json.RawMessage
}

// Parse decodes raw. Empty or all-whitespace input yields empty
// options. Anything other than a JSON object is an error.
func Parse(raw string) (*Options, error) {
	if strings.TrimSpace(raw) == "" {
		return &Options{values: map[string]json.RawMessage{}}, nil
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), &values); err != nil {
		return nil, fmt.Errorf("parsing pipeline options: %w", err)
	}
	if values == nil {
		return nil, fmt.Errorf("parsing pipeline options: expected an object, got null")
	}

	if nested, ok := values[nestingKey]; ok && isObject(nested) {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err != nil {
			return nil, fmt.Errorf("parsing nested pipeline options: %w", err)
		}
		values = inner
	}

	return &Options{values: values}, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// Len returns the number of top-level options.
func (o *Options) Len() int { return len(o.values) }

// Keys returns the option names in sorted order.
func (o *Options) Keys() []string {
	keys := make([]string, 0, len(o.values))
	for key := range o.values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Raw returns the undecoded value of key.
func (o *Options) Raw(key string) (json.RawMessage, bool) {
	value, ok := o.values[key]
	return value, ok
}

// String returns key's value when it is a JSON string.
func (o *Options) String(key string) (string, bool) {
	value, ok := o.values[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", false
	}
	return s, true
}

// RegisteredModules returns the module list from the first of
// RegisteredModulesKey and LegacyRegisteredModulesKey that is present
// and not null. An empty list under the first key wins over a
// populated legacy key. Missing from both means no modules.
func (o *Options) RegisteredModules() ([]string, error) {
	for _, key := range []string{RegisteredModulesKey, LegacyRegisteredModulesKey} {
		value, ok := o.values[key]
		if !ok || isNull(value) {
			continue
		}
		var modules []string
		if err := json.Unmarshal(value, &modules); err != nil {
			return nil, fmt.Errorf("option %s: expected a list of module names: %w", key, err)
		}
		return modules, nil
	}
	return nil, nil
}

// JSON re-encodes the options (after unwrapping) as compact JSON with
// sorted keys.
func (o *Options) JSON() []byte {
	encoded, err := json.Marshal(o.values)
	if err != nil {
		// Every value came out of json.Unmarshal, so it re-encodes.
		panic(fmt.Sprintf("workeropts: re-encoding options: %v", err))
	}
	return encoded
}
