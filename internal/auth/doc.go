// Package auth is the session core: credential checks, token issuance,
// refresh rotation and revocation. It owns the single-active-refresh-token
// invariant; everything above it is HTTP glue and everything below it is a
// store.
//
// A refresh token moves through four terminal states after issuance:
// active (matches the stored value, no revocation marker), superseded
// (another rotation replaced it; fails the equality gate), revoked
// (marker present; fails the revocation gate even though equality would
// pass) and expired (signature check fails on exp). The API collapses
// superseded and revoked into 401 but keeps them apart internally.
package auth
