package domain

import (
	"net/http"
	"slices"
)

// Response is the outbound side of an exchange.
//
// Payload carries an unencoded result produced by an endpoint or error
// handler; serializers encode it into Body on the way back up the chain.
// Like Request, Response is a value: With* methods return modified copies.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Payload any
}

// NewResponse returns an empty 200 response.
func NewResponse() *Response {
	return &Response{
		Status: http.StatusOK,
		Header: make(http.Header),
	}
}

// StatusCode returns the status, defaulting to 200.
func (r *Response) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// HasHeader reports whether the header is present.
func (r *Response) HasHeader(name string) bool {
	return len(r.Header.Values(name)) > 0
}

// WithStatus returns a copy of r with the status replaced.
func (r *Response) WithStatus(code int) *Response {
	c := r.clone()
	c.Status = code
	return c
}

// WithHeader returns a copy of r with the header replaced.
func (r *Response) WithHeader(name, value string) *Response {
	c := r.clone()
	c.Header.Set(name, value)
	return c
}

// WithAddedHeader returns a copy of r with value appended to the header.
func (r *Response) WithAddedHeader(name, value string) *Response {
	c := r.clone()
	c.Header.Add(name, value)
	return c
}

// WithBody returns a copy of r with the encoded body replaced.
func (r *Response) WithBody(body []byte) *Response {
	c := r.clone()
	c.Body = body
	return c
}

// WithPayload returns a copy of r carrying v as its unencoded payload.
// Any previously encoded body is dropped.
func (r *Response) WithPayload(v any) *Response {
	c := r.clone()
	c.Payload = v
	c.Body = nil
	return c
}

func (r *Response) clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.Body = slices.Clone(r.Body)
	return &c
}
