// Package util holds small helpers shared by the services.
package util

// MetricsBucketsMilliSeconds are histogram buckets from 1ms to 4s.
var MetricsBucketsMilliSeconds = []float64{
	1e-3, 2e-3, 4e-3, 16e-3, 32e-3, 64e-3, 128e-3, 256e-3, 512e-3, 1024e-3, 2048e-3, 4096e-3,
}

// MetricsBucketsMilliLongSeconds are histogram buckets from 64ms to 131s.
var MetricsBucketsMilliLongSeconds = []float64{
	64e-3, 128e-3, 256e-3, 512e-3, 1024e-3, 2048e-3, 4096e-3, 8192e-3, 16384e-3, 32768e-3, 65536e-3, 131072e-3,
}

// MetricsBucketsSizeSmall are histogram buckets for counts from 1 to 32768.
var MetricsBucketsSizeSmall = []float64{
	1, 2, 4, 8, 16, 32, 64, 128, 256, 1024, 4096, 32768,
}
