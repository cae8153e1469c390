package credential

import (
	"context"
	"log/slog"
	"strings"
)

// DefaultScheme is the Authorization scheme literal accepted by the gate.
const DefaultScheme = "Token"

// Decision is the outcome of a gate check.
type Decision int

// Gate decisions. Only Authorized lets a request through.
const (
	Authorized Decision = iota
	DeniedMissingHeader
	DeniedMalformedHeader
	DeniedUnknownToken
	DeniedOutOfScope
)

// Allowed reports whether the decision admits the request.
func (d Decision) Allowed() bool { return d == Authorized }

func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case DeniedMissingHeader:
		return "missing_header"
	case DeniedMalformedHeader:
		return "malformed_header"
	case DeniedUnknownToken:
		return "unknown_token"
	case DeniedOutOfScope:
		return "out_of_scope"
	default:
		return "unknown"
	}
}

// Gate authorizes "<scheme> <token>" headers against a Registry.
type Gate struct {
	registry *Registry
	scheme   string
	logger   *slog.Logger
}

// NewGate creates a Gate. An empty scheme means DefaultScheme.
func NewGate(registry *Registry, scheme string, logger *slog.Logger) *Gate {
	if scheme == "" {
		scheme = DefaultScheme
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{registry: registry, scheme: scheme, logger: logger}
}

// Check decides whether header grants write access to collection. It never
// fails; every negative outcome is a denial.
func (g *Gate) Check(header, collection string) Decision {
	d := g.decide(header, collection)
	g.logger.LogAttrs(context.Background(), slog.LevelDebug, "auth decision",
		slog.String("collection", collection),
		slog.String("decision", d.String()),
	)
	return d
}

// Token returns the credential value of a well-formed header.
func (g *Gate) Token(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != g.scheme {
		return "", false
	}
	return parts[1], true
}

func (g *Gate) decide(header, collection string) Decision {
	if header == "" {
		return DeniedMissingHeader
	}
	token, ok := g.Token(header)
	if !ok {
		return DeniedMalformedHeader
	}
	known, allowed := g.registry.Allows(token, collection)
	switch {
	case !known:
		return DeniedUnknownToken
	case !allowed:
		return DeniedOutOfScope
	default:
		return Authorized
	}
}
