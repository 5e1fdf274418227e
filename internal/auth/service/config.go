package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
	"github.com/aussiebroadwan/tokenguard/pkg/jwtx"
)

// DriverKind selects the token technology a guard issues.
type DriverKind string

const (
	DriverJWT   DriverKind = "jwt"
	DriverToken DriverKind = "token"
)

// ErrUnknownGuard is returned when a guard name has no configuration.
var ErrUnknownGuard = errors.New("unknown guard")

// GuardsConfig is the full guard/provider configuration.
type GuardsConfig struct {
	Default   string                    `koanf:"default"`
	Guards    map[string]GuardConfig    `koanf:"guards"`
	Providers map[string]ProviderConfig `koanf:"providers"`
}

// GuardConfig binds a named guard to a driver and a provider.
type GuardConfig struct {
	Driver   DriverKind `koanf:"driver"`
	Provider string     `koanf:"provider"`
}

// ProviderConfig describes where principals live and how tokens for them
// are minted.
type ProviderConfig struct {
	Table             string   `koanf:"table"`
	PrimaryKeyField   string   `koanf:"primary_key_field"`
	IdentifyingFields []string `koanf:"identifying_fields"`
	PasswordField     string   `koanf:"password_field"`
	// ActiveField names a truthy column; empty treats every principal as active.
	ActiveField  string   `koanf:"active_field"`
	HiddenFields []string `koanf:"hidden_fields"`

	Secret    string `koanf:"secret"`
	Algorithm string `koanf:"algorithm"`
	Issuer    string `koanf:"issuer"`

	TokenPrefix       string `koanf:"token_prefix"`
	AccessTTLSeconds  int    `koanf:"access_ttl_seconds"`
	RefreshTTLSeconds int    `koanf:"refresh_ttl_seconds"`
}

func (p ProviderConfig) AccessTTL() time.Duration {
	if p.AccessTTLSeconds <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return time.Duration(p.AccessTTLSeconds) * time.Second
}

func (p ProviderConfig) RefreshTTL() time.Duration {
	if p.RefreshTTLSeconds <= 0 {
		return jwtx.DefaultRefreshTokenTTL
	}
	return time.Duration(p.RefreshTTLSeconds) * time.Second
}

// withDefaults fills the column names every users table is assumed to have.
func (p ProviderConfig) withDefaults() ProviderConfig {
	if p.Table == "" {
		p.Table = "users"
	}
	if p.PrimaryKeyField == "" {
		p.PrimaryKeyField = "id"
	}
	if p.PasswordField == "" {
		p.PasswordField = "password"
	}
	if len(p.IdentifyingFields) == 0 {
		p.IdentifyingFields = []string{"email"}
	}
	return p
}

// Resolve returns the guard and its provider with defaults applied, or a
// misconfigured_guard error describing what is wrong.
func (c GuardsConfig) Resolve(name string) (GuardConfig, ProviderConfig, error) {
	g, ok := c.Guards[name]
	if !ok {
		return GuardConfig{}, ProviderConfig{}, fmt.Errorf("%w: %q", ErrUnknownGuard, name)
	}

	switch g.Driver {
	case DriverJWT, DriverToken:
	default:
		return GuardConfig{}, ProviderConfig{}, misconfigured(name, fmt.Sprintf("unknown driver %q", g.Driver))
	}

	raw, ok := c.Providers[g.Provider]
	if !ok {
		return GuardConfig{}, ProviderConfig{}, misconfigured(name, fmt.Sprintf("provider %q is not defined", g.Provider))
	}
	p := raw.withDefaults()

	idents := append([]string{p.Table, p.PrimaryKeyField, p.PasswordField}, p.IdentifyingFields...)
	if p.ActiveField != "" {
		idents = append(idents, p.ActiveField)
	}
	for _, id := range idents {
		if !store.ValidIdentifier(id) {
			return GuardConfig{}, ProviderConfig{}, misconfigured(name, fmt.Sprintf("invalid identifier %q", id))
		}
	}

	if p.TokenPrefix != "" && !cryptox.ValidTokenPrefix(p.TokenPrefix) {
		return GuardConfig{}, ProviderConfig{}, misconfigured(name,
			fmt.Sprintf("token_prefix %q must match [A-Za-z0-9_-]+", p.TokenPrefix))
	}

	if g.Driver == DriverJWT {
		if p.Secret == "" {
			return GuardConfig{}, ProviderConfig{}, misconfigured(name, "jwt driver requires a secret")
		}
		if len(p.Secret) < jwtx.MinSecretLength {
			return GuardConfig{}, ProviderConfig{}, misconfigured(name,
				fmt.Sprintf("secret must be at least %d bytes", jwtx.MinSecretLength))
		}
	}

	return g, p, nil
}

// Validate resolves every configured guard.
func (c GuardsConfig) Validate() error {
	if len(c.Guards) == 0 {
		return domain.NewAuthError(domain.KindMisconfiguredGuard, "no guards configured", nil)
	}
	if c.Default != "" {
		if _, ok := c.Guards[c.Default]; !ok {
			return domain.NewAuthError(domain.KindMisconfiguredGuard,
				fmt.Sprintf("default guard %q is not defined", c.Default), nil)
		}
	}
	var errs []error
	for name := range c.Guards {
		if _, _, err := c.Resolve(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func misconfigured(guard, msg string) error {
	return domain.NewAuthError(domain.KindMisconfiguredGuard, fmt.Sprintf("guard %q: %s", guard, msg), nil)
}
