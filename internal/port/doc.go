// Package port implements the per-session remote-debugging port allocator.
//
// Every browser session needs its own DevTools (CDP) port so that concurrent
// sessions never collide on a shared inspection endpoint. The allocator hands
// out ports from a configured inclusive range, tracks which session owns
// which port, and returns ports to the free set when sessions end. It does
// this by:
//   - Scanning the range in ascending order for a deterministic pick
//   - Probing host ports with net.Listen to skip ports bound by other processes
//   - Guarding the ownership maps with a single mutex
//
// The OS probe is injectable (the Prober interface) so tests can substitute
// a fake instead of depending on live network state.
package port
