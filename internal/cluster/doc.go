// Package cluster defines the shared vocabulary of a rexec process group:
// ranks and their roles, the message tags that partition traffic, the two
// message kinds exchanged on the worker path, the bounded buffer sizes and
// the control-command keywords.
//
// # Overview
//
// A group is a fixed number of ranks. The layout is decided once, at
// startup, and never changes:
//
//	              ┌──────────────┐
//	 clients ───► │ Dispatcher 0 │ ───► workers
//	 W+1..N-1     │  registry    │      1..W
//	     ▲        │  round-robin │        │
//	     │        └──────────────┘        │
//	     └──────── results ◄──────────────┘
//
// PlanLayout validates the group size and picks the worker count. Callers
// must treat its errors as fatal for every rank, before any role loop runs.
//
// # Messages
//
// Clients and the dispatcher exchange fixed-size, masked byte buffers of
// MaxCommand and MaxOutput bytes (see package obfuscate). The dispatcher and
// its workers exchange Job and JobResult values, JSON encoded, with text
// already bounded by Bound. Bounding never fails: oversized text is cut, and
// BoundMarked additionally leaves TruncationMarker in the tail.
//
// # Tags
//
// Each direction of traffic has its own tag so a rank waiting for a worker
// result is never handed a client command:
//
//	TagClientCommand  client     -> dispatcher
//	TagClientResult   dispatcher -> client
//	TagWorkerJob      dispatcher -> worker
//	TagWorkerResult   worker     -> dispatcher
//
// # HTTP helpers
//
// PostJSON and Get are the small JSON-over-HTTP helpers used by the network
// transport to deliver envelopes and to probe peer readiness.
package cluster
