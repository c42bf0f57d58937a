/*
Package gateflow is a gated conversation workflow engine: a state machine
that routes a user's message through a policy-checking ("superego") stage
before a response-generating ("inner agent") stage may act, with
model-initiated tool invocation at either stage and durable per-session
checkpointing.

# Concept

Each session is a checkpointed transcript plus a workflow position. An
Advance call appends the user's message and drives the selected variant
(gated or ungated) node by node until a terminal state, committing a
checkpoint after every node so a conversation survives process restarts and
resumes from the last committed step.

The policy stage renders its verdict through a structured decision tool;
the engine routes on the typed allow/deny outcome and fails closed on
anything unrecognizable. The response stage may call arbitrary registered
tools, each resolved within the current step.

# Key Features

  - Durable Execution: a checkpoint per node transition; a crash loses at most the in-flight step.
  - Per-Session Serialization: concurrent Advance calls on one session are strictly ordered; distinct sessions run in parallel.
  - Hexagonal Architecture: checkpoint stores, model clients, and lock coordinators are ports with swappable adapters.
  - Typed Decisions: allow/deny parsed into an enum at the engine boundary, marker-compatible on the wire.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/superego-agent/gateflow"
		"github.com/superego-agent/gateflow/pkg/domain"
	)

	func main() {
		// policyModel and responseModel implement ports.ModelClient.
		eng, err := gateflow.New(policyModel, responseModel)
		if err != nil {
			log.Fatal(err)
		}

		cfg := domain.Config{
			Constitution: "## Constitution\nBe helpful; refuse harmful requests.",
			Variant:      domain.VariantGated,
		}

		messages, err := eng.Advance(context.Background(), "session-123", "hello", cfg)
		if err != nil {
			log.Fatal(err)
		}

		for _, msg := range messages {
			log.Printf("[%s] %s", msg.Role, msg.Content)
		}
	}
*/
package gateflow
