// Package measure turns raw transport frames into numeric readings and keeps
// the running aggregates drawn from them.
//
// The per-frame path is Sanitize → Normalize → Parse. A parsed value becomes a
// Measurement, which feeds a Histogram and a Series. Nothing here is safe for
// concurrent use; the acquisition loop owns every aggregate.
package measure
