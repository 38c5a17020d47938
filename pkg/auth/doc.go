// Package auth implements the credential and session core of sheetpulse:
// bcrypt password hashing with transparent upgrade of legacy SHA256 hashes,
// signed time-limited bearer tokens, and the user store and service the API
// handlers call into.
package auth
