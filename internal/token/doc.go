// Package token encodes and decodes the signed bearer credentials used by
// the session layer. Access and refresh tokens share the same wire format
// and secret; they differ only in lifetime.
package token
