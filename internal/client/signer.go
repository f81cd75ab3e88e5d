package client

import (
	"net/http"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
)

// Signer attaches credentials to an outgoing request.
type Signer interface {
	Sign(req *http.Request) error
}

// SignerFunc adapts a function to a Signer.
type SignerFunc func(req *http.Request) error

func (f SignerFunc) Sign(req *http.Request) error { return f(req) }

// CSRFSigner copies the CSRF cookie the server handed out into the request
// header the server checks it against. Session cookies travel through the jar.
type CSRFSigner struct {
	Jar        http.CookieJar
	CookieName string
	HeaderName string
}

func NewCSRFSigner(jar http.CookieJar) *CSRFSigner {
	return &CSRFSigner{Jar: jar, CookieName: CSRFCookieName, HeaderName: CSRFHeaderName}
}

func (s *CSRFSigner) Sign(req *http.Request) error {
	if s.Jar == nil {
		return nil
	}
	for _, c := range s.Jar.Cookies(req.URL) {
		if c.Name == s.CookieName {
			req.Header.Set(s.HeaderName, c.Value)
			break
		}
	}
	// Origin checks on HTTPS compare against the referer.
	req.Header.Set("Referer", req.URL.Scheme+"://"+req.URL.Host+"/")
	return nil
}

// Chain applies signers in order and stops at the first error.
func Chain(signers ...Signer) Signer {
	return SignerFunc(func(req *http.Request) error {
		for _, s := range signers {
			if s == nil {
				continue
			}
			if err := s.Sign(req); err != nil {
				return err
			}
		}
		return nil
	})
}
