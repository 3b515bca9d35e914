// Package searcher provides the parallel search integration layer
// described in §4.9 of the design: it fans a query out to the hybrid
// tier's recent and historical halves concurrently under a wall-clock
// deadline, converts each side's raw distances into scored results via
// a pluggable scoring function, merges the two lists by one of several
// strategies, and optionally caches the final top-k by query.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                      HybridSearcher                       │
//	│  ┌────────────────┐ ctx+timeout  ┌────────────────────┐  │
//	│  │ hybrid.Tier     │──────────────│ hybrid.Tier         │  │
//	│  │ (recent half)   │  ParallelSearch│ (historical half) │  │
//	│  └────────────────┘              └────────────────────┘  │
//	│           \________________  ________________/            │
//	│                            \/                              │
//	│                      Scorer + Merge                        │
//	│                            \/                              │
//	│                        QueryCache                           │
//	└──────────────────────────────────────────────────────────┘
//
// On timeout, ParallelSearch returns whichever side(s) completed with
// TimedOut=true rather than blocking past the deadline; the abandoned
// side's goroutine keeps running to completion but its result is
// discarded rather than forcibly cancelled mid-traversal.
package searcher
