// Package host owns the live scope registry a decode resolves against.
//
// Ownership boundary:
// - scope lifecycle (created -> initialized -> discarded)
// - per-scope typed service providers
// - path validation and normalization
package host
