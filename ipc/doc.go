// Package ipc carries typed messages between a content producer and the
// compositor.
//
// A Bridge has two FIFO directions. Content sends tree updates, buffer
// updates and images; the compositor answers with recycled buffers,
// viewport synchronization and rejections. Sends never block: each
// direction queues without bound until the receiver drains it. After
// Close every send fails with ErrClosed and both receive channels close.
package ipc
