// Package httputil holds the shared JSON response helpers so every
// handler writes the same envelopes.
package httputil
