// Package password implements one-way hashing and constant-time verification of
// short-lived secrets (one-time codes, magic-link tokens) with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Every call to [Argon2.Hash] draws a fresh salt of at least 32 bytes. Cost is
// tunable per environment through [DevelopmentConfig] and [ProductionConfig];
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets; callers supply plaintext and receive hashes.
//   - Import any other otpAuth package.
//   - Log plaintext secrets at runtime.
package password
