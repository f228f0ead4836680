// Package domain holds the core types of the deliberation engine: agent
// roles, analysis sessions, artifacts, progress events and the error
// taxonomy shared by every layer.
package domain
