package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/AaronLay10/SentientJobs/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Credential environment variables. Each also accepts a *_FILE variant.
const (
	envAdminUser    = "SENTIENT_ADMIN_USER"
	envAdminPass    = "SENTIENT_ADMIN_PASS"
	envOperatorUser = "SENTIENT_OPERATOR_USER"
	envOperatorPass = "SENTIENT_OPERATOR_PASS"
)

type authConfig struct {
	adminUser    string
	adminPass    string
	operatorUser string
	operatorPass string
	enabled      bool
}

var auth *authConfig

// InitAuth loads credentials from the environment. With no admin
// credentials set, authentication is disabled and every caller is admin.
func InitAuth() error {
	s, err := config.ResolveSecrets(envAdminUser, envAdminPass, envOperatorUser, envOperatorPass)
	if err != nil {
		return err
	}
	auth = &authConfig{
		adminUser:    s[envAdminUser],
		adminPass:    s[envAdminPass],
		operatorUser: s[envOperatorUser],
		operatorPass: s[envOperatorPass],
		enabled:      s[envAdminUser] != "" && s[envAdminPass] != "",
	}
	return nil
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate returns the caller's role, or "" for bad credentials.
func authenticate(r *http.Request) Role {
	if !IsAuthEnabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	if matches(user, pass, auth.adminUser, auth.adminPass) {
		return RoleAdmin
	}
	if matches(user, pass, auth.operatorUser, auth.operatorPass) {
		return RoleOperator
	}
	return ""
}

func matches(user, pass, wantUser, wantPass string) bool {
	if wantUser == "" || wantPass == "" {
		return false
	}
	// Evaluate both so timing does not reveal which half was wrong.
	u := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser))
	p := subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass))
	return u&p == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Job Engine"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole is middleware admitting only the given roles.
func RequireRole(allowed ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := authenticate(r)
			if role == "" {
				requireAuth(w)
				return
			}
			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// RequireAnyRole admits admins and operators.
func RequireAnyRole(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin, RoleOperator)(next)
}

// RequireAdmin admits admins only.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin)(next)
}
