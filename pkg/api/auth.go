package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/getmockd/htmlshot/pkg/config"
	"github.com/getmockd/htmlshot/pkg/httputil"
)

// APIKeyHeader is the header carrying a static API key.
const APIKeyHeader = "X-API-Key"

var (
	errMissingCredentials = errors.New("missing credentials")
	errInvalidCredentials = errors.New("invalid credentials")
)

// exemptPaths never require credentials. Entries ending in "/" match as
// prefixes.
var exemptPaths = []string{"/health", "/metrics", "/openapi.json", "/images/"}

// authenticator checks X-API-Key against the configured keys, or verifies an
// HS256 bearer token with the shared secret.
type authenticator struct {
	keys   [][]byte
	secret []byte
	parser *jwt.Parser
}

func newAuthenticator(cfg config.AuthConfig) *authenticator {
	a := &authenticator{}
	for _, k := range cfg.APIKeys {
		a.keys = append(a.keys, []byte(k))
	}
	if cfg.JWTSecret != "" {
		a.secret = []byte(cfg.JWTSecret)
		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		}
		if cfg.JWTIssuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
		}
		a.parser = jwt.NewParser(opts...)
	}
	return a
}

func (a *authenticator) enabled() bool {
	return len(a.keys) > 0 || a.parser != nil
}

func isExempt(path string) bool {
	for _, p := range exemptPaths {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

// validKey compares key with every configured key in constant time.
func (a *authenticator) validKey(key string) bool {
	ok := 0
	for _, k := range a.keys {
		ok |= subtle.ConstantTimeCompare([]byte(key), k)
	}
	return ok == 1
}

func (a *authenticator) validToken(raw string) bool {
	if a.parser == nil {
		return false
	}
	tok, err := a.parser.Parse(raw, func(*jwt.Token) (any, error) { return a.secret, nil })
	return err == nil && tok.Valid
}

// check authenticates r. A bearer value is accepted as either a JWT or a
// static key.
func (a *authenticator) check(r *http.Request) error {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		if a.validKey(key) {
			return nil
		}
		return errInvalidCredentials
	}
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return errMissingCredentials
	}
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return errInvalidCredentials
	}
	token = strings.TrimSpace(token)
	if a.validToken(token) || a.validKey(token) {
		return nil
	}
	return errInvalidCredentials
}

func (a *authenticator) middleware(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if err := a.check(r); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="htmlshot"`)
			msg := "Invalid API key or token"
			if errors.Is(err, errMissingCredentials) {
				msg = "Credentials required. Provide X-API-Key or Authorization: Bearer <token>."
			}
			httputil.WriteError(w, http.StatusUnauthorized, httputil.CodeUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}
