package transport

import "net/http"

// Authenticator applies credentials to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (NoAuth) Apply(_ *http.Request) {}

// BearerAuth sends a bearer token in the Authorization header.
type BearerAuth struct {
	Token string
}

// Apply implements the Authenticator interface for BearerAuth.
func (a BearerAuth) Apply(req *http.Request) {
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}

// HeaderAuth sends a credential in a custom header.
type HeaderAuth struct {
	Header string
	Value  string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a HeaderAuth) Apply(req *http.Request) {
	if a.Header != "" && a.Value != "" {
		req.Header.Set(a.Header, a.Value)
	}
}

// QueryAuth sends a credential as a query parameter.
type QueryAuth struct {
	Param string
	Value string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a QueryAuth) Apply(req *http.Request) {
	if req.URL == nil || a.Param == "" || a.Value == "" {
		return
	}
	query := req.URL.Query()
	query.Set(a.Param, a.Value)
	req.URL.RawQuery = query.Encode()
}

// TokenAuth returns a BearerAuth for a non-empty token and NoAuth otherwise.
func TokenAuth(token string) Authenticator {
	if token == "" {
		return NoAuth{}
	}
	return BearerAuth{Token: token}
}
