// Package server runs the short-lived local HTTP server that completes the OAuth2 authorization code flow.
//
// # Router
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers routes on an
// [http.ServeMux] using method patterns ("GET /callback"), so the mux answers wrong methods with 405.
//
// [Middleware] wraps handlers in reverse order (last added executes first). [LogRequests] logs each request
// through charmbracelet/log.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for a token and sends the
// result through a channel. It processes a single callback; later requests are rejected.
//
// # Authorize
//
// [Authorize] ties the pieces together for the CLI: it binds the callback listener, opens the browser on the
// provider's consent page and waits for the callback, the context or the timeout, whichever comes first.
package server
