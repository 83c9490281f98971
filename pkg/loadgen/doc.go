// Package loadgen drives synthetic traffic at an errorgen endpoint.
//
// Each request picks a random error type, an error rate drawn uniformly from
// [MinRate, MaxRate] and a latency in [0, MaxLatency]. Requests are paced by a
// token-bucket limiter at RPS and run concurrently; the run ends after
// Duration (or Requests, when set) and in-flight requests are allowed to
// finish. Results are folded into a Summary.
package loadgen
