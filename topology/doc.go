// Package topology feeds cluster membership into a router.
//
// A router only knows the endpoints it is told about. The types in this
// package implement [regionlb.TopologyWatcher] (a stream of add, remove, up
// and down events) and [regionlb.TopologyOperator] (publishing endpoint
// state) so that membership can come from a shared store instead of every
// process discovering the cluster on its own.
//
// # NATS Topology
//
// [NATS] follows a NATS KV bucket. Each endpoint is one key under a prefix
// (see [KeyFor]) holding a MessagePack-encoded [Record]:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "regionlb")
//
//	watcher, _ := topology.NewNATS(kv, topology.WithPrefix("prod.endpoints"))
//	go router.Follow(ctx, watcher)
//
//	// On a node agent:
//	_ = watcher.Publish(ctx, regionlb.NewEndpoint("10.0.0.1", "9042", "us-east-1"), true)
//
// Existing records are replayed when Watch starts. If the KV watch cannot be
// established or is lost, the watcher falls back to listing the bucket every
// poll interval and emits the difference.
//
// # Local Topology
//
// [Local] is an in-memory implementation for tests and single-process
// deployments:
//
//	local := topology.NewLocal()
//	go router.Follow(ctx, local)
//	_ = local.Publish(ctx, ep, true)
//	_ = local.Withdraw(ctx, ep)
package topology
