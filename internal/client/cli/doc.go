// Package cli provides the interactive TaskHub command-line client.
//
// It wires configuration, the local credential store, the API client and the
// session manager into an interactive REPL. Typical flow: bootstrap the
// stored session, prompt for credentials when needed, and execute user
// commands.
//
// Key features:
//   - Register / Login / Logout
//   - Profile: whoami, profile update, password change
//   - Tasks: list (with filters), show, add, edit, done, delete
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
