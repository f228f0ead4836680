// Package debate implements the bounded adversarial exchange: fixed turn
// rotation, per-round convergence checks by a synthesizer role, and a
// forced resolution at the round limit.
package debate
