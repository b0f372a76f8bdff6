// Package model provides well-known model identifiers for the
// supported providers. Steps reference models by string id, so these
// are conveniences, not an exhaustive registry.
package model
