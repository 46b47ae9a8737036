// Package v2 plugs a regionlb router into the Apache Cassandra gocql driver
// v2 (github.com/apache/cassandra-gocql-driver/v2).
//
// It mirrors the v1 adapter in github.com/arloliu/regionlb/adapter/gocql:
// [HostPolicy] implements gocql.HostSelectionPolicy and [RetryPolicy]
// implements gocql.RetryPolicy, both driven by the same router.
//
// # Usage
//
//	import (
//	    gocql "github.com/apache/cassandra-gocql-driver/v2"
//	    gocqlv2 "github.com/arloliu/regionlb/adapter/gocql/v2"
//	)
//
//	router, _ := regionlb.New(cfg)
//	_ = router.Init(ctx, nil)
//
//	hostPolicy, _ := gocqlv2.NewHostPolicy(router)
//
//	cluster := gocql.NewCluster("10.0.0.1", "10.0.1.1")
//	cluster.PoolConfig.HostSelectionPolicy = hostPolicy
//	cluster.RetryPolicy = gocqlv2.NewRetryPolicy(router.RetryPolicy())
//
// # Differences from v1
//
// v2 hands Pick an ExecutableStatement instead of the query itself. The
// adapter unwraps it to the *gocql.Query or *gocql.Batch the caller built,
// so reads and writes are classified the same way as with v1.
package v2
