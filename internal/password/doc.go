// Package password implements the one-way credential digests stored on
// user records. Argon2id with per-call random salts; digests are
// self-describing PHC strings.
package password
