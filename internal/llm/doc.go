// Package llm defines the provider-neutral chat interface the agent
// layer is built on.
package llm
