/*
Package session implements session management and persistence orchestration.

It provides high-level abstractions for handling concurrent access to session
checkpoints across multiple replicas, integrating per-process mutexes with
distributed locking and long-term storage adapters. Advance calls for one
session ID are strictly serialized; distinct sessions proceed in parallel.
*/
package session
