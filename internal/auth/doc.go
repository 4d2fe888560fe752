// Package auth provides the session gate that decides whether the client
// is logged in.
//
// # Overview
//
// The gate starts in a loading state and leaves it exactly once, after the
// credential store has been read. While loading, dependent components must
// not issue remote requests. Afterwards the gate is either authenticated or
// unauthenticated and moves between those two only through Login and Logout.
//
//	loading ──resolved──▶ authenticated ◀──login── unauthenticated
//	   └────resolved──▶ unauthenticated ◀──logout── authenticated
//
// # Tokens
//
// Access tokens are opaque to the client except for the JWT exp claim, which
// is read without signature verification so an expired token found at
// startup can be discarded instead of producing a 401 on the first request.
//
// # Usage
//
//	gate := auth.NewGate(store, logger)
//	if err := gate.Init(ctx); err != nil {
//	    logger.Warn("credentials unreadable", "error", err)
//	}
//	if err := gate.Check(); err != nil {
//	    return err // ErrNotReady or ErrUnauthenticated
//	}
package auth
