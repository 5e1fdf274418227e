package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aussiebroadwan/tokenguard/internal/auth/service"
)

// GuardsEnvPrefix prefixes environment overrides of the guard configuration.
// A double underscore separates path segments, so
// AUTH_GUARDS__PROVIDERS__USERS__SECRET sets providers.users.secret.
const GuardsEnvPrefix = "AUTH_GUARDS__"

var errReadBytesNotSupported = errors.New("app: map provider does not support ReadBytes")

// mapProvider feeds a literal map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) { return nil, errReadBytesNotSupported }

func (m mapProvider) Read() (map[string]any, error) { return m, nil }

// defaultGuards is the configuration used when no file is given: one opaque
// token guard over the bundled users table.
func defaultGuards() map[string]any {
	return map[string]any{
		"default": "web",
		"guards": map[string]any{
			"web": map[string]any{"driver": string(service.DriverToken), "provider": "users"},
		},
		"providers": map[string]any{
			"users": map[string]any{
				"table":              "users",
				"primary_key_field":  "id",
				"identifying_fields": []any{"email", "username"},
				"password_field":     "password",
				"active_field":       "is_active",
			},
		},
	}
}

// LoadGuards reads the guard configuration. Later sources override earlier:
//  1. built-in defaults
//  2. the YAML file at path, if any
//  3. AUTH_GUARDS__ environment variables
//  4. defaultGuard, if non-empty
func LoadGuards(path, defaultGuard string) (service.GuardsConfig, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaultGuards()), nil); err != nil {
		return service.GuardsConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return service.GuardsConfig{}, fmt.Errorf("load guards file %s: %w", path, err)
		}
	}

	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, GuardsEnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := k.Load(env.Provider(GuardsEnvPrefix, ".", envTransformer), nil); err != nil {
		return service.GuardsConfig{}, fmt.Errorf("load guards env: %w", err)
	}

	var cfg service.GuardsConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return service.GuardsConfig{}, fmt.Errorf("unmarshal guards: %w", err)
	}
	if defaultGuard != "" {
		cfg.Default = defaultGuard
	}

	return cfg, nil
}
