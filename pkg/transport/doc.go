// Package transport provides HTTP-level middleware and error serialization
// shared by the HTTP adapter: panic recovery, request ID propagation, and
// structured request logging.
package transport
