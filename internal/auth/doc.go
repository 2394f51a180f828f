// Package auth holds the client's authentication state and the rules that
// keep it consistent with the backend.
//
// # State
//
// Store carries {User, Profile, Loading}. It starts with Loading true and is
// written by three sources:
//
//   - Provider.Bootstrap: restores the persisted session once at start
//   - the session-change listener registered by Provider.Mount
//   - Provider.SignOut, which clears directly after the backend call
//
// Sign-up and sign-in never write state themselves; the backend's SIGNED_IN
// notification does. Clear bumps an epoch so that a listener or bootstrap
// write begun before a sign-out cannot resurrect the signed-out user.
// After Unmount the store is disposed and every write is dropped.
//
// # Errors
//
// Actions return ErrNotConfigured, *BackendError or *NetworkError, plus
// ErrConfirmationPending from SignUp. Bootstrap, the listener and profile
// fetches log failures and carry on. KindOf and Message map any error to a
// display bucket and text.
package auth
