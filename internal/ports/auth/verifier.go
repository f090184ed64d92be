package auth

import "context"

// AuthVerifier valida un access token contra el identity provider y
// devuelve los claims del usuario. nil verifier = modo dev (headers X-Debug-*).
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
