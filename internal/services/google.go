package services

import (
	"errors"
	"strings"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

var ErrInvalidGoogleToken = errors.New("invalid Google ID token")

// GoogleProfile is the verified identity carried by a Google ID token.
type GoogleProfile struct {
	Subject    string
	Email      string
	Name       string
	GivenName  string
	FamilyName string
	Picture    string
}

// GoogleVerifier checks an ID token and returns the profile it asserts.
type GoogleVerifier interface {
	Verify(idToken string) (*GoogleProfile, error)
}

type googleIDTokenVerifier struct {
	clientID string
}

// NewGoogleVerifier verifies tokens against Google's signing certificates for
// the given OAuth client id.
func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &googleIDTokenVerifier{clientID: clientID}
}

func (g *googleIDTokenVerifier) Verify(idToken string) (*GoogleProfile, error) {
	if g.clientID == "" || strings.TrimSpace(idToken) == "" {
		return nil, ErrInvalidGoogleToken
	}

	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return nil, ErrInvalidGoogleToken
	}

	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return nil, ErrInvalidGoogleToken
	}

	return &GoogleProfile{
		Subject:    claimSet.Sub,
		Email:      claimSet.Email,
		Name:       claimSet.Name,
		GivenName:  claimSet.GivenName,
		FamilyName: claimSet.FamilyName,
		Picture:    claimSet.Picture,
	}, nil
}
