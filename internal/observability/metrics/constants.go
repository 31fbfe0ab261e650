// Package metrics provides the Prometheus collectors for vaultd.
package metrics

// File operation names used as the "operation" label.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpMove   = "move"
	OpDelete = "delete"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket parameters.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart64B is the starting bucket for byte-size histograms.
	BucketStart64B = 64.0

	BucketFactor2 = 2
	BucketFactor4 = 4

	BucketCount10 = 10
	BucketCount12 = 12
)
