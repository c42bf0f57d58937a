/*
Package observability provides tools for monitoring the gateflow engine.

It includes Prometheus collectors fed by lifecycle hooks, structured-log
hooks, and a combinator for fanning events out to multiple hook sets.
*/
package observability
