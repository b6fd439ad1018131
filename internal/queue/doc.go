// Package queue serializes access to the loaded inference graphs. The
// engine's sessions are only safe for sequential reuse, so every synthesis
// request, whether CLI, HTTP, or batch, funnels through one bounded queue
// drained by a single worker. Interactive requests jump ahead of batch work.
package queue
