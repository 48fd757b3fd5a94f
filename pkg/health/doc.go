// Package health provides a small TCP reachability checker used as a
// cheap pre-filter before the agent's own HTTP health-check wire call: a
// freshly-booted VM's port 31888 often isn't listening yet, and a TCP
// dial fails faster than a full HTTP round trip would.
package health
