package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
)

// PasswordVerifier checks a plaintext secret against a stored hash.
type PasswordVerifier interface {
	Verify(plain, hash string) bool
}

// PasswordVerifierFunc adapts a function to PasswordVerifier.
type PasswordVerifierFunc func(plain, hash string) bool

func (f PasswordVerifierFunc) Verify(plain, hash string) bool { return f(plain, hash) }

// DefaultPasswordVerifier accepts argon2id and bcrypt hashes.
var DefaultPasswordVerifier PasswordVerifier = PasswordVerifierFunc(cryptox.CheckPassword)

// PrincipalResolver loads principals from a provider's users table.
type PrincipalResolver struct {
	Users    store.Users
	Provider ProviderConfig
}

// ByCredentials finds the principal whose identifying fields match creds.
func (r *PrincipalResolver) ByCredentials(ctx context.Context, creds map[string]string) (domain.Principal, error) {
	rec, err := r.Users.FindByCredentialFields(ctx, creds, r.Provider.IdentifyingFields, r.Provider.Table)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, domain.ErrInvalidCredentials
		}
		return domain.Principal{}, fmt.Errorf("find principal by credentials: %w", err)
	}
	return r.toPrincipal(rec), nil
}

// ByID re-reads a principal by primary key. A missing row is unknown_principal.
func (r *PrincipalResolver) ByID(ctx context.Context, id string) (domain.Principal, error) {
	if id == "" {
		return domain.Principal{}, domain.ErrUnknownPrincipal
	}
	rec, err := r.Users.FindByID(ctx, id, r.Provider.Table, r.Provider.PrimaryKeyField)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, domain.NewAuthError(domain.KindUnknownPrincipal,
				fmt.Sprintf("principal %q not found", id), nil)
		}
		return domain.Principal{}, fmt.Errorf("find principal by id: %w", err)
	}
	return r.toPrincipal(rec), nil
}

// ActiveByID is ByID that also rejects inactive principals.
func (r *PrincipalResolver) ActiveByID(ctx context.Context, id string) (domain.Principal, error) {
	p, err := r.ByID(ctx, id)
	if err != nil {
		return domain.Principal{}, err
	}
	if !p.Active {
		return domain.Principal{}, domain.ErrInactivePrincipal
	}
	return p, nil
}

func (r *PrincipalResolver) toPrincipal(rec store.Record) domain.Principal {
	prov := r.Provider

	p := domain.Principal{
		ID:      stringify(rec[prov.PrimaryKeyField]),
		IDField: prov.PrimaryKeyField,
		Active:  true,
	}
	if h, ok := rec[prov.PasswordField]; ok && h != nil {
		p.CredentialHash = stringify(h)
	}
	if prov.ActiveField != "" {
		p.Active = truthy(rec[prov.ActiveField])
	}

	drop := append([]string{prov.PasswordField}, prov.HiddenFields...)
	p.Attributes = Sanitize(rec, drop...)
	return p
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return err == nil && b
	case []byte:
		return truthy(string(val))
	default:
		return false
	}
}
