package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// detectUnknownFields compares raw JSON with known struct fields.
// Called after a successful parse, so re-parse failures indicate an internal inconsistency.
func detectUnknownFields(data []byte) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []string{"internal: failed to re-parse config for unknown field detection"}
	}

	var warnings []string
	known := getJSONFields(reflect.TypeOf(Config{}))
	for _, key := range sortedKeys(raw) {
		if key == "$schema" {
			continue
		}
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("unknown field %q at root level (ignored)", key))
		}
	}

	if envsRaw, ok := raw["environments"]; ok {
		warnings = append(warnings, checkEnvironmentUnknownFields(envsRaw)...)
	}

	return warnings
}

func checkEnvironmentUnknownFields(data json.RawMessage) []string {
	var envs []map[string]json.RawMessage
	if err := json.Unmarshal(data, &envs); err != nil {
		return []string{"internal: failed to re-parse environments for unknown field detection"}
	}

	var warnings []string
	known := getJSONFields(reflect.TypeOf(EnvironmentConfig{}))
	for i, env := range envs {
		label := fmt.Sprintf("#%d", i)
		if nameRaw, ok := env["name"]; ok {
			var name string
			if json.Unmarshal(nameRaw, &name) == nil && name != "" {
				label = name
			}
		}
		for _, key := range sortedKeys(env) {
			if !known[key] {
				warnings = append(warnings, fmt.Sprintf("unknown field %q in environment %q (ignored)", key, label))
			}
		}
	}
	return warnings
}

// getJSONFields returns a map of known JSON field names for a struct type.
func getJSONFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if name := strings.Split(tag, ",")[0]; name != "" {
			fields[name] = true
		}
	}
	return fields
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
