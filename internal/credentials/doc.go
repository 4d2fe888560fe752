// Package credentials persists the two values that make up a login: the
// bearer token and the user id.
//
// # Backends
//
//   - FileStore: $XDG_CONFIG_HOME/parlor/token and .../user_id (default)
//   - SQLiteStore: a key/value table in a single SQLite file
//   - MemoryStore: process memory, for tests and throwaway sessions
//
// All backends satisfy Store. Load on an empty store is not an error; it
// returns zero Credentials, which the auth gate reads as "logged out".
//
// # Usage
//
//	store := credentials.NewFileStore(dir)
//	creds, err := store.Load(ctx)
//	if creds.Empty() {
//	    // prompt for login
//	}
package credentials
