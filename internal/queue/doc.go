// Package queue holds converted media waiting to be posted and decides when
// the next post may happen.
//
// Queue is an in-memory FIFO guarded by one mutex that is held only for field
// updates, never across the remote post. Post claims a single in-flight slot,
// calls the poster without the lock, then removes the item only if it is
// still at the head. Any other outcome leaves the item queued unless the
// platform rejected the media outright.
//
// The cooldown scheduler lives alongside the list: GenerateNewCooldown picks
// the next window from a CooldownPolicy (base interval plus jitter, grown
// exponentially by consecutive failures, or a short fixed interval when
// nothing was posted), and Freeze imposes an external backoff that dominates
// the ordinary cooldown until it expires. Both deadlines only move forward.
//
// The queue is not persisted. On restart the daemon rebuilds it from the
// sorted directories.
package queue
