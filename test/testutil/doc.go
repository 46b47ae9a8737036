// Package testutil provides helpers shared by regionlb tests.
//
//   - [TestMetricsCollector]: records every metrics call for assertions
//   - [StartEmbeddedNATS] and [EndpointBucket]: an in-process NATS server
//     with a KV bucket for topology tests
//   - [StartScyllaDB]: a ScyllaDB test container for integration tests
//     (requires Docker)
package testutil
