package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// DefaultTokenURL is Kakao's OAuth token endpoint.
const DefaultTokenURL = "https://kauth.kakao.com/oauth/token" //nolint:gosec // not a credential

// OAuthRefresher refreshes tokens with the OAuth refresh_token grant.
// it only performs the call, Credential decides when a refresh is due.
type OAuthRefresher struct {
	TokenURL     string
	ClientID     string
	ClientSecret string       // optional
	Client       *http.Client // nil uses http.DefaultClient, Credential bounds the call
}

// Refresh posts the refresh grant and returns the new token pair.
// Token.Refresh is set only when the server rotated the refresh token.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	tokenURL := r.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := oauth2.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	if r.Client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.Client)
	}

	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return Token{}, fmt.Errorf("refresh failed with status %d: %w: %s", re.Response.StatusCode, err, re.Body)
		}
		return Token{}, fmt.Errorf("refresh request: %w", err)
	}

	res := Token{Access: tok.AccessToken}
	if tok.RefreshToken != refreshToken {
		res.Refresh = tok.RefreshToken
	}
	return res, nil
}
