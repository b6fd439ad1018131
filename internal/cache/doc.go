// Package cache stores finished synthesis audio so repeated requests skip
// the inference pipeline. A small in-memory tier answers hot keys; a
// zstd-compressed disk tier persists buffers across runs with a size- and
// age-bounded index.
package cache
