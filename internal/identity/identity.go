// Package identity gates the admin view. Tokens come either from an
// OAuth provider (redirect login, id_token checked against the tenant key
// set) or from local admin accounts signed by this service.
package identity

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"aria-chat/internal/pkg/jwtutil"
)

const LocalIssuer = "aria-chat"

var ErrUnauthenticated = errors.New("not authenticated")

type Profile struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// State mirrors what the admin page needs before rendering anything.
type State struct {
	IsLoading       bool     `json:"is_loading"`
	IsAuthenticated bool     `json:"is_authenticated"`
	User            *Profile `json:"user,omitempty"`
}

type Verifier interface {
	Verify(token string) (*Profile, error)
}

type LocalVerifier struct {
	secret string
}

func NewLocalVerifier(secret string) *LocalVerifier {
	return &LocalVerifier{secret: secret}
}

func (v *LocalVerifier) Verify(token string) (*Profile, error) {
	claims, err := jwtutil.ParseToken(v.secret, token, jwt.WithIssuer(LocalIssuer))
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return profileFromClaims(claims), nil
}

// LocalSubject formats a local account id the way tokens carry it.
func LocalSubject(userID uint) string {
	return "local|" + strconv.FormatUint(uint64(userID), 10)
}

// Gate tries each verifier in order.
type Gate struct {
	verifiers []Verifier
}

func NewGate(verifiers ...Verifier) *Gate {
	var vs []Verifier
	for _, v := range verifiers {
		if v != nil {
			vs = append(vs, v)
		}
	}
	return &Gate{verifiers: vs}
}

func (g *Gate) Authenticate(token string) (*Profile, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	for _, v := range g.verifiers {
		if profile, err := v.Verify(token); err == nil {
			return profile, nil
		}
	}
	return nil, ErrUnauthenticated
}

// Resolve never reports loading: verification is synchronous, so by the
// time a state is produced it is settled.
func (g *Gate) Resolve(token string) State {
	profile, err := g.Authenticate(token)
	if err != nil {
		return State{}
	}
	return State{IsAuthenticated: true, User: profile}
}

func profileFromClaims(claims *jwtutil.Claims) *Profile {
	return &Profile{
		Subject: claims.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
	}
}
