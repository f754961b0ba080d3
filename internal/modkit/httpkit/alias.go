// Package httpkit is what modules import for routing and responses, so they
// never reach into the platform http package directly
package httpkit

import (
	"net/http"

	phttp "rollcall/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

type (
	// Envelope is the JSON body every route answers with
	Envelope = phttp.Envelope
	// Response is a status, body and headers
	Response = phttp.Response
	// Handler is a plain http handler func
	Handler = phttp.Handler
	// Router is the routing seam
	Router = phttp.Router
)

// OK is a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Created is a 201 response
func Created(data any) Response { return phttp.Created(data) }

// Error maps err to its status and envelope
func Error(err error) Response { return phttp.Error(err) }

// Call adapts fn into a Handler. A returned Response is written as is, any
// other value is wrapped in a 200.
func Call(fn func(*http.Request) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) Response {
		out, err := fn(r)
		if err != nil {
			return phttp.Error(err)
		}
		if resp, ok := out.(Response); ok {
			return resp
		}
		return phttp.OK(out)
	})
}

// Get mounts fn under GET path
func Get(r Router, path string, fn func(*http.Request) (any, error)) { r.Get(path, Call(fn)) }

// Post mounts fn under POST path
func Post(r Router, path string, fn func(*http.Request) (any, error)) { r.Post(path, Call(fn)) }

// Param returns a route parameter such as {id}
func Param(r *http.Request, name string) string { return chi.URLParam(r, name) }

// RespondError writes err as an envelope, for handlers that stream their own body
func RespondError(w http.ResponseWriter, r *http.Request, err error) { phttp.RespondError(w, r, err) }
