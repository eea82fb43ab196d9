// Package heartbeat implements the two-state liveness machine used to reap
// half-dead connections.
//
// Each session embeds a Liveness. On every tick Sweep visits all targets:
// a target still PENDING from the previous tick is terminated, every other
// target is moved to PENDING and probed. A transport pong calls Ack, which
// moves the target back to ALIVE. A silent peer is therefore terminated
// between one and two intervals after it stops answering.
//
// Sweep never waits for acknowledgements; it only inspects state left by the
// previous tick.
package heartbeat
