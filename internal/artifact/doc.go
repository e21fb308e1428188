// Package artifact models artifact transformation steps and the live
// services they depend on.
//
// Ownership boundary:
// - step and chain shapes
// - transformer variants
// - service contracts a host scope provides (invocation factory, object
//   context) and process-wide services (state registry, fingerprinters)
//
// Services are never serialized; codecs re-resolve them on decode.
package artifact
