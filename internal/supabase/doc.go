// Package supabase provides a small HTTP client for a Supabase project.
//
// # Overview
//
// Alchemy has no backend of its own. Authentication and the two tables it
// reads live in a managed Supabase project, and this package speaks the
// project's REST surface directly:
//
//   - gotrue.go: sign-up, password sign-in, token refresh, user lookup, logout
//   - postgrest.go: user_profiles and ice_breaking_questions reads
//   - claims.go: unverified access-token claim decoding
//   - types.go: wire structs mirroring the JSON payloads
//
// # Endpoints
//
//   - POST /auth/v1/signup
//   - POST /auth/v1/token?grant_type=password
//   - POST /auth/v1/token?grant_type=refresh_token
//   - GET  /auth/v1/user
//   - POST /auth/v1/logout
//   - GET  /rest/v1/user_profiles?id=eq.<uuid>
//   - GET  /rest/v1/ice_breaking_questions?is_active=eq.true&order=created_at.asc
//
// Every request carries the `apikey` header. User-scoped calls send the
// session's access token as the bearer; anonymous calls send the anon key.
//
// # Error Handling
//
//   - *APIError: the backend answered with 4xx/5xx. Message is taken from the
//     first non-empty of msg, error_description, message, error.
//   - *TransportError: no response at all (DNS, refused, timeout).
//   - Anything else: request construction or decoding problems.
//
// Callers classify with errors.As. The package does no retries and no
// caching; policy belongs to the session layer above it.
package supabase
