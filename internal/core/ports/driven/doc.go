// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports). Services depend on these interfaces, never on
// concrete adapters, so every external collaborator can be swapped or mocked.
package driven
