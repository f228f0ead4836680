// Package engine implements the deliberation pipeline for analysis
// sessions.
//
// The manager coordinates each session by:
//   - Validating the request against the closed role set and engine bounds
//   - Driving the stage sequence: analyst fan-out, research debate,
//     manager synthesis, trader, risk debate, portfolio decision
//   - Publishing ordered progress events to the event bus
//   - Archiving snapshots at every stage transition
//   - Enforcing cancellation and the session timeout
//
// Sessions always reach a terminal state: completed with a structurally
// valid final decision, failed with a classified error, or cancelled.
package engine
