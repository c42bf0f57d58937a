/*
Package ports defines the driven ports (interfaces) for the Gateflow engine.

These interfaces decouple the core workflow from external implementations,
allowing the engine to work with various checkpoint backends, model
providers, and lock coordinators.

# Key Interfaces

  - CheckpointStore: Responsible for persisting and loading session checkpoints.
  - ModelClient: The invocation boundary for the policy and response models.
  - DistributedLocker: Provides distributed locking for concurrent session access.
*/
package ports
