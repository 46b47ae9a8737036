// Package cqlroute holds the driver-independent half of the CQL driver
// adapters: the host registry that mirrors driver hosts into a router,
// protocol error classification and the retry decisions the drivers' retry
// policies delegate to.
package cqlroute
