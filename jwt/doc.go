// Package jwt encodes and decodes the signed, stateless identity tokens handed
// to clients after login.
//
// A token carries userId, email, role and (optionally) the id of the session it
// was minted alongside, plus the standard exp/iat/iss claims. Decoding checks
// the signature algorithm, issuer and expiry against an injectable clock.
// Tokens are not revocable by this package; callers that need revocation pair
// the sid claim with a denylist.
package jwt
