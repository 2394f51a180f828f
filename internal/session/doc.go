// Package session keeps the signed-in session alive between calls and
// between runs, on top of the Supabase client.
//
// Manager implements auth.Backend. It loads the persisted session lazily,
// refreshes the access token a minute before it expires, and broadcasts
// SIGNED_IN, TOKEN_REFRESHED and SIGNED_OUT to subscribers. Each subscriber
// receives events in order on its own goroutine.
//
// Sessions persist through a TokenStore:
//
//   - KeyringStore: the OS keychain via go-keyring (default)
//   - FileStore: a 0600 TOML file, for hosts without a keyring daemon
//   - MemoryStore: nothing survives the process
package session
