// Package domain contains the value types that flow through a pipeline:
// the in-flight request and response, the exchange record persisted after a
// dispatch, and the HTTP error type participants use to report failures.
package domain

import (
	"maps"
	"net/http"
	"net/url"
)

// Request attribute keys shared between participants.
const (
	// AttrParsedBody holds the decoded request body set by a serializer.
	AttrParsedBody = "parsedBody"
	// AttrRecovering is set by the error handler when it re-dispatches the
	// error queue. Its value is the error being recovered from.
	AttrRecovering = "recovering"
	// AttrSubject holds the authenticated subject.
	AttrSubject = "subject"
	// AttrContentType holds the negotiated response media type.
	AttrContentType = "contentType"
)

// Request is the inbound side of an exchange.
// Requests are treated as values: the With* methods return a modified copy
// and never mutate the receiver, so a participant can hand a changed request
// down the chain without affecting the participants above it.
type Request struct {
	Method     string
	URL        *url.URL
	Header     http.Header
	Body       []byte
	RemoteAddr string
	Params     map[string]string

	attributes map[string]any
}

// NewRequest creates a request with an empty header.
func NewRequest(method, target string) *Request {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: target}
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: make(http.Header),
	}
}

// Path returns the request path, or "" if no URL is set.
func (r *Request) Path() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Path
}

// Param returns a route parameter.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Attribute returns a request attribute.
func (r *Request) Attribute(key string) (any, bool) {
	v, ok := r.attributes[key]
	return v, ok
}

// Attributes returns a copy of all request attributes.
func (r *Request) Attributes() map[string]any {
	return maps.Clone(r.attributes)
}

// WithAttribute returns a copy of r with the attribute set.
func (r *Request) WithAttribute(key string, value any) *Request {
	c := r.clone()
	if c.attributes == nil {
		c.attributes = make(map[string]any, 1)
	}
	c.attributes[key] = value
	return c
}

// WithHeader returns a copy of r with the header replaced.
func (r *Request) WithHeader(name, value string) *Request {
	c := r.clone()
	c.Header.Set(name, value)
	return c
}

// WithBody returns a copy of r with the body replaced.
func (r *Request) WithBody(body []byte) *Request {
	c := r.clone()
	c.Body = body
	return c
}

func (r *Request) clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.Params = maps.Clone(r.Params)
	c.attributes = maps.Clone(r.attributes)
	return &c
}
