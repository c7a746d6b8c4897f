package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// GoogleVerifier validates Google ID tokens via Google's OIDC discovery
// document and JWKS. Signature, issuer, audience and expiry are all checked
// before any claim is trusted.
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier fetches Google's OIDC discovery document. Makes an
// outbound HTTP request to accounts.google.com at startup; returns an error
// if unreachable.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	p, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("google oidc discovery: %w", err)
	}
	return &GoogleVerifier{
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*ProviderClaims, error) {
	token, err := g.verifier.Verify(ctx, idToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Wrap(KindProviderUnavailable, "Google sign in is temporarily unavailable", err)
		}
		return nil, Wrap(KindInvalidToken, "sign in with Google failed, please try again", err)
	}

	var c struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := token.Claims(&c); err != nil {
		return nil, Wrap(KindInvalidToken, "sign in with Google failed, please try again", err)
	}

	return &ProviderClaims{
		Subject:       token.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		FullName:      c.Name,
		PictureURL:    c.Picture,
	}, nil
}
