// Package authmw provides HTTP middleware for bearer token authentication.
// Each token is bound to a caller identity that handlers read back with
// Actor.
package authmw

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Tokens maps caller identities to their bearer tokens.
type Tokens map[string]string

// ParseTokens reads "name=token,name=token". A bare token with no name is
// bound to the identity "api".
func ParseTokens(s string) (Tokens, error) {
	out := Tokens{}
	for entry := range strings.SplitSeq(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, tok, found := strings.Cut(entry, "=")
		if !found {
			name, tok = "api", entry
		}
		name, tok = strings.TrimSpace(name), strings.TrimSpace(tok)
		if name == "" || tok == "" {
			return nil, fmt.Errorf("token entry %q: name and token must be non-empty", entry)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("token entry %q: duplicate name", name)
		}
		out[name] = tok
	}
	return out, nil
}

// Names returns the configured identities, sorted.
func (t Tokens) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type credential struct {
	actor string
	token []byte
}

type actorKey struct{}

// WithActor returns ctx carrying the caller identity.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the caller identity set by BearerToken, or "".
func Actor(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}

// BearerToken returns middleware that validates the Authorization header
// carries one of the configured tokens and stores its identity in the
// request context. Every token is compared in constant time.
func BearerToken(tokens Tokens) func(http.Handler) http.Handler {
	creds := make([]credential, 0, len(tokens))
	for _, name := range tokens.Names() {
		creds = append(creds, credential{actor: name, token: []byte(tokens[name])})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			actor := ""
			for _, c := range creds {
				if subtle.ConstantTimeCompare(got, c.token) == 1 && actor == "" {
					actor = c.actor
				}
			}
			if actor == "" {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
