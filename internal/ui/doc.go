// Package ui is the Bubble Tea front end: a landing screen, the sign-in
// form, the socials hub, the ice-breaking questions carousel, the guarded
// dashboard and a not-found screen.
//
// Auth state is owned by an auth.Provider. The model never mutates it
// directly; it runs provider calls as commands and re-reads the store
// whenever its change channel fires. Navigation is a route.History back
// stack, and the route guard is re-applied after every navigation and
// every auth change.
//
// Key bindings:
//
//   - ?: help overlay
//   - T: cycle theme (saved to preferences)
//   - esc: back, H: home
//   - tab/shift+tab, arrows: move focus
//   - enter: activate
//   - ctrl+c: quit
package ui
