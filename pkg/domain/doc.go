/*
Package domain contains the core domain models for the Gateflow engine.

It defines the fundamental entities of the gated conversation workflow,
such as Messages, Sessions, and the typed policy Decision. This package is
kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Message: One entry in a session transcript (user, policy, response, or tool result).
  - ToolCall / ToolResult: A model-requested tool invocation and its correlated outcome.
  - Session: The checkpointed snapshot of a conversation (transcript + workflow position).
  - Config: The per-advance bundle (constitution text, adherence directives, variant).
  - Decision: The typed allow/deny/malformed verdict parsed from the decision tool.
*/
package domain
