package httpx

import "context"

type ctxKey string

const (
	CtxKeySubject   ctxKey = "subject"
	CtxKeyPrincipal ctxKey = "principal"
	CtxKeyToken     ctxKey = "token"
)

// SubjectFromContext returns the authenticated subject id, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(CtxKeySubject).(string)
	return s, ok && s != ""
}

// PrincipalFromContext returns whatever identity the Authenticator attached.
func PrincipalFromContext(ctx context.Context) any {
	return ctx.Value(CtxKeyPrincipal)
}

// TokenFromContext returns the raw bearer token of the request.
func TokenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(CtxKeyToken).(string)
	return s
}
