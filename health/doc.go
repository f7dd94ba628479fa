// Package health exposes the operational health of the bridge. It converts
// per-component health reports into serializable statuses, aggregates them
// into a single system verdict and serves the result over HTTP for
// orchestrators and load balancers.
package health
