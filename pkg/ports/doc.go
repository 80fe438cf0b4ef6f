/*
Package ports defines the driven ports (interfaces) for the Conduit backend.

These interfaces decouple the bridge and routing core from external
implementations, allowing the backend to work with various stores, metrics
sinks, and failure-isolation policies.

# Key Interfaces

  - RuntimeBridge: The public surface of the OMC runtime client.
  - ToolRegistry: Resolves tool names to definitions and validates inputs.
  - Breaker: Failure-isolation wrapper around outbound submissions.
  - MetricsSink: Fire-and-forget call-outcome recording.
  - RecordStore: CRUD persistence for backend records.
*/
package ports
