// Package redis provides the Redis-backed implementations of the gateway's
// persistence contracts.
//
// Three stores share one managed client:
//
//   - CounterStore: fixed-window rate limit counters. Increments run a Lua
//     script so the count and the window expiry commit atomically across
//     gateway replicas.
//   - AccessListStore: operator-managed allow and deny lists, one hash per
//     list kind.
//   - EventStore: the bounded threat event log, a sorted set scored by
//     event time.
//
// Key layout:
//
//	gateway:counter:<scope>|<identity>|<bucket>   fixed-window counters
//	gateway:accesslist:allow                      allow list hash
//	gateway:accesslist:deny                       deny list hash
//	gateway:threat:events                         threat event sorted set
//
// Counter keys carry their own expiry; access list entries and threat
// events are swept by the background jobs instead.
package redis
