// Package api defines the wire-level types shared across the authentication
// pipeline: request and response payloads, the structured error taxonomy,
// and identifier generation for transactions, sessions, and log references.
package api
