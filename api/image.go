package api

import (
	"net/url"
	"strings"
)

const (
	privateImagePath = "/images/profile/"
	publicImagePath  = "/images/public/"
)

// SecureImageURL turns an API-hosted profile image URL into its public,
// token-signed form. Other URLs, and URLs that fail to parse, come back as is.
func (c *Client) SecureImageURL(raw string) string {
	return SecureImageURL(raw, c.imageToken)
}

// SecureImageURL is the Client-independent form of Client.SecureImageURL.
func SecureImageURL(raw, token string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, privateImagePath) && !strings.Contains(raw, publicImagePath) {
		return raw
	}

	u, err := url.Parse(strings.Replace(raw, privateImagePath, publicImagePath, 1))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
