// Package httpapi exposes an otpAuth.Engine over HTTP with a chi router.
//
// Routes live under /auth/v1. Codes are delivered through a CodeSender; the
// HTTP response never carries the plaintext code or magic token. Login
// responses set the token and session cookies and also return the token in
// the body for bearer clients.
package httpapi
