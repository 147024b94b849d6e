// Package media holds the vocabulary shared by the server-side credential
// issuer and reconciler and the client-side upload pipeline: image roles,
// file descriptors, object key naming, credentials and the error taxonomy.
//
// Keys follow the shape
//
//	<namespace>/<ownerID>/<uuid>-<sanitized filename>
//
// where the namespace is derived from the Role ("products" or "avatars").
// A key is immutable once written: replacing an image always means minting
// a new key and retiring the old one.
package media
