// Package domain contains the core domain entities and value objects for upshift.
//
// This package represents the innermost layer of the architecture. It has no
// dependencies on infrastructure concerns (file system, logging) and contains
// only pure business logic.
//
// # Entities
//
//   - [Job]: One source file moving through the pipeline, with its state machine
//   - [Entry]: An append-only ledger record of a successful delivery
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
