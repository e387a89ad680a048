package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// ScopeClaim is the private claim naming what a token may do.
	ScopeClaim = "scope"
	// ScopeCatalogAdmin grants the catalog, pricing, package and import routes.
	ScopeCatalogAdmin = "catalog:admin"
)

// TokenValidator holds the claim expectations for admin session tokens.
// Signature verification happens before Validate is called.
type TokenValidator struct {
	Issuer    string
	Audience  string
	Subject   string
	Scope     string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks tok, signed with algorithm, against the expectations at now.
// Tokens without an expiry are rejected.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	switch {
	case tok == nil:
		return errors.New("auth: token is nil")
	case algorithm == "":
		return errors.New("auth: token missing algorithm")
	case v.Algorithm != "" && algorithm != v.Algorithm:
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(v.ClockSkew),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	for _, claim := range []struct {
		want string
		opt  func(string) jwt.ValidateOption
	}{
		{v.Issuer, jwt.WithIssuer},
		{v.Audience, jwt.WithAudience},
		{v.Subject, jwt.WithSubject},
		{v.Scope, func(s string) jwt.ValidateOption { return jwt.WithClaimValue(ScopeClaim, s) }},
	} {
		if claim.want != "" {
			opts = append(opts, claim.opt(claim.want))
		}
	}
	return jwt.Validate(tok, opts...)
}

// tokenAlgorithm reads the alg header of a compact JWS without trusting it;
// callers compare it with the expected algorithm before verifying.
func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := sigs[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("auth: token missing algorithm")
	}
	return alg, nil
}
