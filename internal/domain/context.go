package domain

import "context"

type credentialKey struct{}

// ContextCredential carries the authorized caller through request context.
type ContextCredential struct {
	KeyPrefix  string
	Collection string
}

// WithCredential stores a ContextCredential in the context.
func WithCredential(ctx context.Context, c ContextCredential) context.Context {
	return context.WithValue(ctx, credentialKey{}, c)
}

// CredentialFromContext extracts the ContextCredential from the context.
func CredentialFromContext(ctx context.Context) (ContextCredential, bool) {
	c, ok := ctx.Value(credentialKey{}).(ContextCredential)
	return c, ok
}
