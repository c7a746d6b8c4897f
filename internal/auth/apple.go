package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	appleIssuer  = "https://appleid.apple.com"
	appleKeysURL = appleIssuer + "/auth/keys"

	appleKeyCacheTTL = 24 * time.Hour
)

// AppleVerifier validates Apple identity tokens against Apple's published
// JWKS and binds each token to the nonce generated for that sign-in attempt.
type AppleVerifier struct {
	clientID string
	client   *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewAppleVerifier(clientID string) *AppleVerifier {
	return &AppleVerifier{
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify checks signature, issuer, audience and expiry, then enforces the
// nonce binding. A token whose nonce claim is absent or does not match the
// supplied nonce (raw or SHA-256) is rejected as a replay.
func (v *AppleVerifier) Verify(ctx context.Context, identityToken, nonce string) (*ProviderClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(appleIssuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)

	var keyErr error
	_, err := parser.ParseWithClaims(identityToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		key, err := v.keyFor(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return key, nil
	})
	if keyErr != nil {
		return nil, Wrap(KindProviderUnavailable, "Apple sign in is temporarily unavailable", keyErr)
	}
	if err != nil {
		return nil, Wrap(KindInvalidToken, "sign in with Apple failed, please try again", err)
	}

	tokenNonce, _ := claims["nonce"].(string)
	if !nonceMatches(nonce, tokenNonce) {
		return nil, E(KindNonceMismatch, "sign in with Apple failed, please try again")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)

	return &ProviderClaims{
		Subject:       sub,
		Email:         email,
		EmailVerified: appleBoolClaim(claims["email_verified"]),
	}, nil
}

// nonceMatches accepts either the raw nonce or its hex SHA-256; Apple embeds
// whichever form the client put in the sign-in request.
func nonceMatches(nonce, tokenNonce string) bool {
	if nonce == "" || tokenNonce == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(tokenNonce), []byte(nonce)) == 1 {
		return true
	}
	sum := sha256.Sum256([]byte(nonce))
	hashed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(tokenNonce), []byte(hashed)) == 1
}

// Apple encodes email_verified as a bool or the string "true" depending on
// token vintage.
func appleBoolClaim(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	default:
		return false
	}
}

func (v *AppleVerifier) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[kid]; ok && time.Since(v.fetchedAt) < appleKeyCacheTTL {
		return key, nil
	}

	if err := v.refreshKeysLocked(ctx); err != nil {
		return nil, err
	}

	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no Apple public key with kid %q", kid)
	}
	return key, nil
}

type appleJWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *AppleVerifier) refreshKeysLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, appleKeysURL, nil)
	if err != nil {
		return fmt.Errorf("building Apple keys request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching Apple public keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching Apple public keys: status %d", resp.StatusCode)
	}

	var keySet struct {
		Keys []appleJWK `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return fmt.Errorf("decoding Apple public keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(keySet.Keys))
	for _, jwk := range keySet.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		key, err := rsaKeyFromJWK(jwk)
		if err != nil {
			return fmt.Errorf("parsing Apple public key %q: %w", jwk.Kid, err)
		}
		keys[jwk.Kid] = key
	}

	v.keys = keys
	v.fetchedAt = time.Now()
	return nil
}

func rsaKeyFromJWK(jwk appleJWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
