// Package revocation is the expiring deny-list for refresh tokens. It is a
// cache, not an audit log: entries disappear when the underlying token
// would have expired on its own.
package revocation
