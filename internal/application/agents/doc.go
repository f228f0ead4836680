// Package agents implements the agent units: one per role, each building
// its context from session state, calling the LLM through the tool invoker
// and parsing the output into a typed artifact. Units are stateless; the
// registry resolves the closed role set for the engine.
package agents
