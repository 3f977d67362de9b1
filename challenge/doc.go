// Package challenge models one-time-code challenges and persists them.
//
// A challenge is issued per OTP request and carries Argon2id hashes of a
// numeric code and of a magic-link token. Its lifecycle state is never stored:
// [StateOf] derives Issued, Consumed, Expired or AttemptsExhausted from
// ConsumedAt, ExpiresAt and Attempts.
//
// Stores must make two writes atomic. [Store.ReserveAttempt] takes one of the
// challenge's verification attempts before a code is compared, so no more than
// the maximum number of guesses ever reach the hash. [Store.Consume] succeeds
// for exactly one caller and hands back the winner's reservation, leaving
// Attempts equal to the number of failed guesses.
// Expired challenges are filtered on read; nothing sweeps them.
package challenge
