// Package sensor models the biosignal headset stream consumed by the
// experiment scheduler.
//
// A Source pushes batches of timestamped Entry values to every registered
// Listener. The scheduler tags the stream by setting a marker on the Source:
// each entry received while a marker is set carries that marker and a
// RelativeTimestamp measured from the moment it was set. Marker 0 means no
// stimulus is on screen.
//
// # Sources
//
// MockSource synthesises a headset stream locally at a configured sample
// rate. NATSSource consumes raw samples published by a headset bridge (or by
// `bioadapt simulate`) over NATS and tags them locally, so marker timing is
// always measured on the machine that renders the stimulus.
//
// # Accumulation
//
// Accumulator collects entries for the stimulus currently on screen. It is
// filled from the source's delivery goroutine and drained from the scheduler
// goroutine; its lock is held only for slice manipulation.
package sensor
