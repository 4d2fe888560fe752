// Package gateway is the client side of the assistant service's JSON API.
//
// # Overview
//
// Client.Do is the single request function: (method, path, body) in,
// decoded response or *Error out. The typed wrappers (Login, Register,
// GetUser, ListSessions, LoadSession, DeleteSession, Chat) build on it.
//
// # Authentication
//
// Every call except Login and Register reads the credential store at the
// moment of the request and attaches
//
//	Authorization: Bearer <token>
//
// Nothing is cached, so a logout takes effect on the very next request.
//
// # Errors
//
// Failures are *Error values whose kind matches with errors.Is:
//
//   - ErrAuthFailure: 401/403 (bad credentials, expired token)
//   - ErrNetworkFailure: no response (connection refused, timeout)
//   - ErrRemoteRejection: any other non-2xx; Detail holds the server message
//   - ErrMalformedResponse: a 2xx whose body does not decode
//   - ErrValidation: rejected locally before any request
//
// Nothing is retried.
package gateway
