// Package policy provides the routing and retry policies of regionlb.
//
// # Region Classification
//
// Two classification schemes build an immutable [Snapshot] from the known
// endpoints:
//
//   - [RegionPair]: splits endpoints into read-local, write-local and remote
//     buckets from a read region and a write region. The write region is
//     either static or discovered through the addresses a global DNS name
//     resolves to.
//   - [PreferredRegions]: ranks every endpoint by an ordered list of regions,
//     primary first, and groups them into per-region tiers.
//
// Example:
//
//	pair := policy.RegionPair{ReadRegion: "east", WriteRegion: "west"}
//	snap := pair.Classify(endpoints).Snapshot()
//
//	var cursor policy.Cursor
//	plan := snap.Plan(req.IsRead(), cursor.Next())
//
// # Plans
//
// [Snapshot.Plan] concatenates the tiers relevant to a request, each rotated
// by the shared [Cursor] so consecutive plans start on different members.
// An empty plan is a valid result.
//
// # Retries
//
// [RetryPolicy] decides, per failure class, whether to retry in place, move
// to the next endpoint of the plan, or give up. [Retrier] drives a plan
// under a RetryPolicy:
//
//	retrier := policy.NewRetrier(policy.NewRetryPolicy(policy.DefaultRetryConfig()), nil)
//	err := retrier.Do(ctx, plan, func(ctx context.Context, ep types.Endpoint) error {
//	    return send(ctx, ep)
//	})
package policy
