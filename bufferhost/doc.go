// Package bufferhost holds the painted raster content of one layer on the
// compositor side.
//
// Content arrives as a [RotatedBuffer]: a [Descriptor] (the pixel storage)
// plus the logical rectangle it covers and a rotation offset. The rotation
// lets the logical top-left move, for example while scrolling, without
// reallocating storage; a logical pixel (px, py) lives at storage
// coordinate ((px-x+rx) mod w, (py-y+ry) mod h).
//
// Two hosts exist:
//
//   - [UploadHost] copies the dirty part of each update into a texture it
//     owns. The producer keeps its buffer.
//   - [SwapHost] adopts each new front buffer and hands the previous one
//     back so the producer can paint into it next (ping-pong).
//
// Both report, per update, the previously valid region that is no longer
// valid, and both draw themselves through the engine with Composite.
package bufferhost
