// Package state implements the append-only session state: the single shared
// mutation point for artifacts produced by concurrent agent units.
package state
