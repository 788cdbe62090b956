// Package webapp is the HTTP face of the authentication core: cookie
// handling, the middleware pipeline and the signin/signup/signout routes.
// Everything else (templates, static content, squeak storage) is an external
// collaborator injected as a plain http.Handler.
package webapp

import "context"

type (
	// Identity is the authenticated principal attached to a request context
	// once the session cookie resolves.
	Identity struct {
		SessionID string
		Username  string
	}

	ctxKey byte
)

var identityKey = ctxKey(1)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the request identity, if the authentication middleware
// established one. Anonymous requests return `false`.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	v := ctx.Value(identityKey)
	if v == nil {
		return Identity{}, false
	}
	return v.(Identity), true
}
