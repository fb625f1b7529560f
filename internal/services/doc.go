// Package services implements the remote music catalog used by the reconciliation engine.
//
// # Catalog
//
// [Catalog] is the contract the engine depends on: reading playlists and liked songs, searching
// for alternate versions, and writing a playlist's track sequence. [SpotifyService] implements it
// against the Spotify Web API.
//
// # Authentication
//
// [SpotifyService] uses OAuth2 with automatic token refresh through [oauth2.Config.Client]. It also
// implements [OAuthService] so the CLI can run the authorization code flow against the local
// callback server.
//
// # Rate limiting
//
// Every request goes through a [governor.Gate]. A 429 response becomes a [governor.RateLimitError]
// carrying the Retry-After value and the gate holds all callers until the window passes, then the
// request is sent again.
//
// # Error Handling
//
// Non-2xx responses become [APIError], which unwraps to the shared sentinels:
//   - 401: [shared.ErrTokenExpired]
//   - 404: [shared.ErrPlaylistNotFound]
//   - 5xx: [shared.ErrTransientNetwork], retried a bounded number of times by the gate
//   - anything else: [shared.ErrAPIRequest]
package services
