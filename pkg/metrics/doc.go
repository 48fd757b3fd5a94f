// Package metrics defines and registers the Prometheus collectors used
// across the dependency engine, placement scheduler, agent client, and
// orchestrator workflows.
package metrics
