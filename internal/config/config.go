// Package config loads daemon options from a TOML file, MJPEGNODE_* environment
// variables and command-line flags, and watches the file for edits.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/mjpegnode/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` tag when reading the environment.
const EnvPrefix = "MJPEGNODE_"

// LoadConfig fills opts with precedence CLI flags > env vars > config file > defaults.
//
// opts must be a pointer to a flat struct. A field named Config holds the
// TOML path; other fields are mapped through their `toml` (dotted path) and
// `env` tags. If cmd is non-nil, flags the user set explicitly are left alone.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changed := changedFlags(cmd)
	skip := func(field reflect.StructField) bool {
		return changed[fieldNameToFlag(field.Name)]
	}

	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		if err := applyFile(v, t, f.String(), skip); err != nil {
			return err
		}
	}

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if skip(field) {
			continue
		}
		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}
		if envValue, ok := os.LookupEnv(EnvPrefix + envKey); ok && envValue != "" {
			setFieldValueFromString(v.Field(i), envValue)
		}
	}

	return nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

// applyFile applies TOML values; a missing file is not an error.
func applyFile(v reflect.Value, t reflect.Type, path string, skip func(reflect.StructField) bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if skip(field) {
			continue
		}
		tomlPath := field.Tag.Get("toml")
		if tomlPath == "" {
			continue
		}
		if value := getNestedValue(doc, tomlPath); value != nil {
			setFieldValue(v.Field(i), value)
		}
	}
	return nil
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "MQTTHost" -> "mqtt-host", "StreamPort" -> "stream-port".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	var out []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				out = append(out, '-')
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	current := data
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

// setFieldValue sets a field from a decoded TOML value.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		switch s := value.(type) {
		case string:
			field.SetString(s)
		case int64:
			field.SetString(strconv.FormatInt(s, 10))
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		switch i := value.(type) {
		case int64:
			field.SetInt(i)
		case int:
			field.SetInt(int64(i))
		}
	case reflect.Slice:
		arr, ok := value.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return
		}
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

// setFieldValueFromString sets a field from an environment string.
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
}

// LoadLoggingConfig reads the [logging] table of a TOML config file.
// level, format and file are global; any other string key is a module level.
// A missing file yields the defaults; a malformed one is an error so a
// reload does not silently reset levels.
func LoadLoggingConfig(configPath string) (logging.Config, error) {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var raw struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for key, value := range raw.Logging {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "level":
			cfg.Level = s
		case "format":
			cfg.Format = s
		case "file":
			cfg.File = s
		default:
			cfg.Modules[key] = s
		}
	}
	return cfg, nil
}
