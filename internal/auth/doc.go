// Package auth provides JWT verification and identity propagation for the
// gateway's HTTP API.
//
// Tokens are HS256 JWTs with the gateway's own claims set: the subject names
// the caller, a role claim distinguishes users from agent workers, and the
// issuer pins tokens to this gateway. The middleware verifies each request's
// bearer token, attaches the resolved Identity to the request context, and
// rejects everything else with 401 before any core operation runs. Handlers
// retrieve the caller with FromContext or Require.
package auth
