// Package watcher runs the background face-match loop over the selected
// doors.
//
// One cycle fetches a frame from every selected door with a camera,
// runs the matcher, and opens the door through the dispatcher when a
// known face clears the threshold. A per-door cooldown gates automatic
// opens; the cooldown is stamped only after a confirmed successful open,
// so a failed command can retry on the very next cycle.
//
// Cycle concurrency is bounded to one. A tick or manual trigger arriving
// while a cycle is running sets a pending flag instead of starting a
// second cycle; when the running cycle finishes, exactly one more cycle
// runs. Requests are never dropped and never accumulate a backlog.
//
// Doors that vanish from the catalog between cycles are pruned from the
// selection. An empty selection disarms the ticker until the selection
// is replaced. Stop disarms the ticker and waits for an in-flight cycle
// to complete; it never cancels a cycle mid-door.
package watcher
