// Package postgres implements the otpAuth stores on PostgreSQL through gorm.
//
// It provides a challenge.Store, a session.Store, a session.RevocationList,
// an otpAuth.UserProvider and an audit sink. Rows are never deleted;
// expiry is evaluated against timestamps at read time. Schema lives in
// embedded SQL migrations applied by RunMigrations.
package postgres
