/*
Package domain contains the core domain models for Conduit.

It defines the wire types exchanged with the OMC runtime, the bridge's
connection lifecycle, the error taxonomy, and the record types persisted by
the backend's stores. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - ToolCallRequest / ToolCallResponse: The control-channel envelope and its
    correlated result.
  - StreamEvent: One decoded frame from the runtime's push channel.
  - ConnectionState: The bridge's view of the stream connection.
  - ToolCallError: Typed failure carrying a taxonomy code.
*/
package domain
