// Package auth obtains the bearer token used by every remote service call.
package auth

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FranksOps/serpwalk/pkg/httpclient"
)

// ErrSignIn is returned when the account service refuses the credentials or
// answers without a token.
var ErrSignIn = errors.New("sign in failed")

// Credentials identify the account used to sign in.
type Credentials struct {
	Email    string
	Password string
	// Token, when set, is used as-is and no sign in request is made.
	Token string
}

// Client signs in against the account service at BaseURL.
type Client struct {
	BaseURL string
	HTTP    *httpclient.Client
	logger  *slog.Logger
}

// New returns an auth client. A nil logger falls back to slog.Default().
func New(baseURL string, hc *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc, logger: logger}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

// HashPassword returns the hex md5 digest the account service expects.
func HashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// SignIn exchanges email and password for a bearer token.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	body := signInRequest{Email: email, Password: HashPassword(password)}

	var resp signInResponse
	if _, err := c.HTTP.JSON(ctx, http.MethodPost, c.BaseURL+"/user/signin", httpclient.Session{}, body, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSignIn, err)
	}
	if resp.Data.Token == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrSignIn)
	}
	return resp.Data.Token, nil
}

// Resolve builds the session shared by the remote service clients, signing in
// only when no static token is configured.
func (c *Client) Resolve(ctx context.Context, creds Credentials) (httpclient.Session, error) {
	if creds.Token != "" {
		c.logger.Info("using configured token")
		return httpclient.Session{Token: creds.Token}, nil
	}

	token, err := c.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		return httpclient.Session{}, err
	}
	c.logger.Info("signed in", "email", creds.Email)
	return httpclient.Session{Token: token}, nil
}
