// Package transport provides tagged, blocking, point-to-point messaging
// between the ranks of a rexec group.
//
// # Contract
//
// Send hands a payload to the destination rank and returns once it has been
// queued there. Recv blocks until a message with the requested tag arrives,
// optionally restricted to one sender, and reports who sent it. There is no
// broadcast; the dispatcher's shutdown signal is one Send per worker.
//
// # Implementations
//
// Hub keeps one Mailbox per rank in memory and serves groups whose ranks run
// as goroutines of a single process (rexec local, tests).
//
// HTTP gives each rank its own listener:
//
//	POST /mailbox   Envelope{id, source, tag, payload} -> 204, queued locally
//	GET  /health    200 once listening, 503 otherwise
//
// Rank addresses come from a YAML peers file. Deliveries to a peer that is
// not listening yet are retried a bounded number of times, and PeerProbe
// lets a rank wait until the peers it talks to answer /health before it
// enters its role loop.
//
// # Ordering
//
// Messages from one sender on one tag are received in send order. Different
// tags are independent queues; a Recv on one tag never consumes another.
package transport
