package auth

import (
	"net/http"
	"time"

	"github.com/go-pkgz/auth/v2/token"
)

// CookieName is the signed session cookie, per §6 "Cookie".
const CookieName = "VESTIBULE_AUTH"

// SessionDuration bounds how long a local login stays valid before the
// cookie itself expires (§3 Lifecycle).
const SessionDuration = 24 * time.Hour

// Principal is a User (§3) minus its password hash, carried in the
// signed cookie.
type Principal struct {
	Login string   `json:"login"`
	Roles []string `json:"roles"`
}

// NewSessionService wires go-pkgz/auth/v2's token.Service purely as a
// signed-cookie JWT issuer/verifier: vestibule has no OAuth providers,
// so only the library's lower-level Set/Get primitives are used, not
// its auth.Service/provider machinery (teacher's
// internal/auth/service.go wraps the full auth.Service for OAuth-style
// providers; that layer has no counterpart here since spec.md §1
// explicitly excludes "general authentication provider negotiation
// beyond local password + signed cookie").
func NewSessionService(secret, parentDomain string, secureCookies bool) *token.Service {
	return token.NewService(token.Opts{
		SecretReader: token.SecretFunc(func(id string) (string, error) {
			return secret, nil
		}),
		TokenDuration:   SessionDuration,
		CookieDuration:  SessionDuration,
		DisableXSRF:     true,
		SecureCookies:   secureCookies,
		JWTCookieName:   CookieName,
		JWTCookieDomain: parentDomain,
		Issuer:          "vestibule",
	})
}

// SetSession signs and sets the VESTIBULE_AUTH cookie carrying
// Principal as JSON, per §6's cookie contract.
func SetSession(svc *token.Service, w http.ResponseWriter, p Principal) error {
	claims := token.Claims{
		User: &token.User{
			Name: p.Login,
			ID:   "local:" + p.Login,
			Attributes: map[string]interface{}{
				"roles": p.Roles,
			},
		},
	}
	_, err := svc.Set(w, claims)
	return err
}

// SessionFromRequest extracts and verifies the signed cookie, returning
// the carried Principal. The second return is false when no valid
// session is present (§4.1 step 3: absent/invalid session).
func SessionFromRequest(svc *token.Service, r *http.Request) (Principal, bool) {
	claims, _, err := svc.Get(r)
	if err != nil || claims.User == nil {
		return Principal{}, false
	}

	p := Principal{Login: claims.User.Name}
	if raw, ok := claims.User.Attributes["roles"]; ok {
		switch v := raw.(type) {
		case []string:
			p.Roles = v
		case []interface{}:
			for _, r := range v {
				if s, ok := r.(string); ok {
					p.Roles = append(p.Roles, s)
				}
			}
		}
	}
	return p, true
}

// ClearSession removes the session cookie (logout).
func ClearSession(svc *token.Service, w http.ResponseWriter) {
	svc.Reset(w)
}
