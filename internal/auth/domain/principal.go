package domain

import "maps"

// Principal is a read-only snapshot of an authenticated user record.
type Principal struct {
	ID             string
	IDField        string
	CredentialHash string
	Active         bool

	// Attributes is the sanitized public projection: serializable values
	// only, credential and hidden fields removed.
	Attributes map[string]any
}

// Projection returns a copy of the public projection.
func (p Principal) Projection() map[string]any {
	out := maps.Clone(p.Attributes)
	if out == nil {
		out = make(map[string]any)
	}
	return out
}
