// Package gocql plugs a regionlb router into the gocql driver
// (github.com/gocql/gocql).
//
// [HostPolicy] implements gocql.HostSelectionPolicy: the driver's host
// events feed the router and every query is routed along the router's plan.
// [RetryPolicy] implements gocql.RetryPolicy with the router's retry rules.
//
// # Usage
//
//	router, _ := regionlb.New(cfg, regionlb.WithLogger(logger))
//	_ = router.Init(ctx, nil)
//
//	hostPolicy, _ := gocqladapter.NewHostPolicy(router)
//
//	cluster := gocql.NewCluster("10.0.0.1", "10.0.1.1")
//	cluster.PoolConfig.HostSelectionPolicy = hostPolicy
//	cluster.RetryPolicy = gocqladapter.NewRetryPolicy(router.RetryPolicy())
//
//	session, _ := cluster.CreateSession()
//
// Hosts reach the router as "connect-ip:port" endpoints labelled with their
// datacenter (see [EndpointOf]). Queries expose their statement text, so
// SELECT statements are routed as reads; batches are always writes.
package gocql
