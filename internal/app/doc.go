// Package app is the composition root. It loads configuration and dotenv
// files, sets up logging, chooses between the hosted backend and offline
// mode, and wires the session manager, auth provider and question source
// into the UI.
//
// Run blocks until the UI exits. Diag performs a one-shot connectivity
// check and prints the result.
package app
