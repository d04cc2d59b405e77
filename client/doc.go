// Package client is the content side of a painted layer.
//
// A ContentClient keeps the producer's back buffers, decides which part of
// the visible region must be repainted, and hands painted buffers to the
// compositor over an ipc bridge. When the visible area moves within the
// buffer size the buffer is rotated rather than reallocated, so only newly
// exposed pixels are painted.
package client
