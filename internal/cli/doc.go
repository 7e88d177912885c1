// Package cli provides the interactive restaurant-diary command-line client.
//
// It wires configuration, a store backend, a token-based identity provider,
// and an interactive REPL over two live collection views: visited restaurants
// and the eat-later list. Typical flow: paste an access token to log in, then
// browse and edit entries while the views stay current through the change
// feed.
//
// Key features:
//   - Login with a signed access token / Logout
//   - List, add, edit and remove visited-restaurant logs
//   - List, add, edit and remove eat-later entries
//   - Manual refresh on top of the automatic change-feed updates
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
