// ABOUTME: Package client provides a typed HTTP client for the gateway API
// ABOUTME: plus a polling loop that syncs chat events incrementally

// Package client talks to the gateway's JSON API.
//
// Client wraps the HTTP surface with typed methods. Poller layers an
// incremental sync loop on top: it re-reads the full event log on a
// fixed cadence and emits only events with a sequence number above the
// highest one already delivered, so repeated polls with no new activity
// produce no duplicate deliveries.
package client
