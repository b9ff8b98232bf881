package grading

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// CSRFCookieName and CSRFHeader follow the hosting page's anti-forgery convention.
const (
	CSRFCookieName = "csrftoken"
	CSRFHeader     = "X-CSRFToken"
)

// ErrNoToken is returned when no anti-forgery token is available yet.
var ErrNoToken = errors.New("anti-forgery token not available")

// TokenSource supplies the opaque anti-forgery credential for mutating calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a token handed over by the hosting page.
type StaticToken string

// Token returns the static token.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// CookieToken reads the token from a cookie jar, where the server's csrf endpoint
// or page load left it.
type CookieToken struct {
	Jar  http.CookieJar
	URL  *url.URL
	Name string
}

// Token returns the value of the named cookie for URL.
func (c *CookieToken) Token(context.Context) (string, error) {
	name := c.Name
	if name == "" {
		name = CSRFCookieName
	}
	for _, ck := range c.Jar.Cookies(c.URL) {
		if ck.Name == name && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", ErrNoToken
}
