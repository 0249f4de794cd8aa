package oura

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// TokenResponse is the provider's answer to a token request, passed through
// to the caller with its status code.
type TokenResponse struct {
	Status int
	Body   json.RawMessage
}

// TokenProxy forwards OAuth token requests to the provider using the
// application's client credentials.
type TokenProxy struct {
	client   *resty.Client
	tokenURL string
}

func NewTokenProxy(tokenURL, clientID, clientSecret string, timeout time.Duration) *TokenProxy {
	client := resty.New().
		SetTimeout(timeout).
		SetBasicAuth(clientID, clientSecret).
		SetHeader("Accept", "application/json")

	return &TokenProxy{client: client, tokenURL: tokenURL}
}

// ExchangeCode trades an authorization code for tokens.
func (p *TokenProxy) ExchangeCode(ctx context.Context, code, redirectURL string) (*TokenResponse, error) {
	return p.post(ctx, map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": redirectURL,
	})
}

// Refresh trades a refresh token for a new token pair.
func (p *TokenProxy) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return p.post(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
}

func (p *TokenProxy) post(ctx context.Context, params map[string]string) (*TokenResponse, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Post(p.tokenURL)
	if err != nil {
		return nil, fmt.Errorf("oauth %s request: %w", params["grant_type"], err)
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("oauth %s: non-JSON response with status %d", params["grant_type"], resp.StatusCode())
	}
	return &TokenResponse{Status: resp.StatusCode(), Body: json.RawMessage(body)}, nil
}
