// Package driving provides interfaces for external actors (primary/inbound
// ports). The CLI and HTTP adapters depend on these interfaces rather than
// on concrete service types.
package driving
