// Package dispatcher implements the coordinating tier of a rexec group: it
// owns the client registry, load-balances commands across workers, answers
// the dispatcher-local control commands and orchestrates worker shutdown.
//
// # Overview
//
// The dispatcher is rank 0. It is the only rank that talks to every other
// rank, and the only serialization point of the group:
//
//	┌─────────────────────────────────────┐
//	│            DISPATCHER               │
//	├─────────────────────────────────────┤
//	│  Registry     client rank → active  │
//	│  RoundRobin   cursor over workers   │
//	│  audit.Log    text + CSV trail      │
//	└─────────────────────────────────────┘
//
// # Loop
//
// While at least one client is active:
//
//  1. Receive a masked command from any rank and unmask it
//  2. Drop it silently if the sender is not a client rank
//  3. Append an audit entry
//  4. exit / quit: acknowledge, mark the client inactive
//  5. __clients: answer from the registry, never forwarded
//  6. anything else: forward to the next worker in rotation, wait for its
//     reply and relay it, masked, to the client named in the reply
//
// When the last client leaves, every worker receives the shutdown job and
// the audit log is closed.
//
// # Load Balancing
//
// Round-robin is the entire policy. There is no affinity, no queue-depth
// awareness and no timeout: a slow worker stalls the dispatcher, and with it
// every client, until it answers. Clients therefore observe a total order of
// requests, the order in which the dispatcher received them.
//
// # Concurrency Model
//
// Registry and RoundRobin are plain values owned by the loop; they hold no
// locks because nothing else can reach them.
package dispatcher
