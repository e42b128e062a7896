// Package server exposes the session service over HTTP.
//
// The API is a small REST surface on chi:
//
//	POST   /v1/sessions        create (or return) a session
//	GET    /v1/sessions        list live sessions
//	GET    /v1/sessions/{id}   describe one session
//	DELETE /v1/sessions/{id}   destroy a session
//	GET    /health             service and port-pool status
//
// Domain errors map onto status codes: an exhausted debug-port range is
// 503 (retry after freeing a session), an invalid session ID is 400, and
// an unknown ID is 404.
package server
