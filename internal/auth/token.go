package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/golang-jwt/jwt/v5"
)

// TokenResponse is the body returned by the login and refresh endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// Credential converts the response into a Credential.
func (r *TokenResponse) Credential(now time.Time) (*apicore.Credential, error) {
	if r == nil || r.AccessToken == "" {
		return nil, constants.ErrMissingAccessToken
	}

	cred := &apicore.Credential{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}

	if r.ExpiresIn > 0 {
		cred.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}

	return cred, nil
}

// ParseExpiry extracts the exp claim of a JWT without verifying its
// signature. The token must have three segments and decodable claims.
func ParseExpiry(token string) (time.Time, error) {
	if len(strings.Split(token, ".")) != constants.TokenPartsCount {
		return time.Time{}, constants.ErrInvalidTokenFormat
	}

	claims := jwt.MapClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", constants.ErrInvalidTokenFormat, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", constants.ErrInvalidTokenFormat, err)
	}

	if exp == nil {
		return time.Time{}, constants.ErrNoExpirationClaim
	}

	return exp.Time, nil
}

// Expiry returns when the credential's access token expires: the embedded
// exp claim, or ExpiresAt when the token carries none.
func Expiry(cred *apicore.Credential) (time.Time, error) {
	if cred == nil || cred.AccessToken == "" {
		return time.Time{}, constants.ErrAuthRequired
	}

	exp, err := ParseExpiry(cred.AccessToken)
	if err == nil {
		return exp, nil
	}

	if errors.Is(err, constants.ErrNoExpirationClaim) && !cred.ExpiresAt.IsZero() {
		return cred.ExpiresAt, nil
	}

	return time.Time{}, err
}

// Valid reports whether the credential is well-formed and strictly
// unexpired at now, after subtracting leeway from the expiry.
func Valid(cred *apicore.Credential, now time.Time, leeway time.Duration) bool {
	exp, err := Expiry(cred)
	if err != nil {
		return false
	}

	return now.Before(exp.Add(-leeway))
}
