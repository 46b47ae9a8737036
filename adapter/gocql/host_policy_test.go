package gocql

import (
	"context"
	"net"
	"testing"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/regionlb"
	"github.com/arloliu/regionlb/internal/cqlroute"
	"github.com/arloliu/regionlb/types"
)

type fakeHost struct {
	ip     string
	port   int
	dc     string
	hostID string
}

func (h fakeHost) ConnectAddress() net.IP {
	return net.ParseIP(h.ip)
}

func (h fakeHost) Port() int {
	return h.port
}

func (h fakeHost) DataCenter() string {
	return h.dc
}

func (h fakeHost) HostID() string {
	return h.hostID
}

type fakeStatement string

func (s fakeStatement) Statement() string {
	return string(s)
}

var (
	east1 = types.NewEndpoint("10.0.0.1", "9042", "east")
	east2 = types.NewEndpoint("10.0.0.2", "9042", "east")
	west1 = types.NewEndpoint("10.0.1.1", "9042", "west")
)

func newRegionPairRouter(t *testing.T) *regionlb.Router {
	t.Helper()

	cfg := regionlb.DefaultConfig()
	cfg.ReadRegion = "east"
	cfg.WriteRegion = "west"
	router, err := regionlb.New(cfg)
	require.NoError(t, err)
	require.NoError(t, router.Init(t.Context(), nil))

	return router
}

// collect drains a NextHost iterator.
func collect(next gocql.NextHost) []*gocql.HostInfo {
	var hosts []*gocql.HostInfo
	for h := next(); h != nil; h = next() {
		hosts = append(hosts, h.Info())
	}

	return hosts
}

func TestEndpointOf(t *testing.T) {
	id := uuid.New()
	ep := cqlroute.EndpointOf(fakeHost{ip: "10.0.0.1", port: 9042, dc: "east", hostID: id.String()})
	assert.Equal(t, "10.0.0.1:9042", ep.Address)
	assert.Equal(t, "east", ep.Region)
	assert.Equal(t, id, ep.HostID)

	ep = cqlroute.EndpointOf(fakeHost{ip: "2001:db8::1", port: 9042, hostID: "not-a-uuid"})
	assert.Equal(t, "[2001:db8::1]:9042", ep.Address)
	assert.Equal(t, uuid.Nil, ep.HostID)
}

func TestRequestFor(t *testing.T) {
	assert.True(t, RequestFor(fakeStatement("SELECT * FROM t")).IsRead())
	assert.False(t, RequestFor(fakeStatement("UPDATE t SET v = 1")).IsRead())
	assert.True(t, RequestFor(&gocql.Batch{}).IsBatch())
	assert.False(t, RequestFor(nil).IsRead())
	assert.False(t, RequestFor(42).IsRead())
}

func TestNewHostPolicyNilRouter(t *testing.T) {
	_, err := NewHostPolicy(nil)
	require.ErrorIs(t, err, types.ErrNilRouter)
}

func TestHostPolicyPickOrder(t *testing.T) {
	router := newRegionPairRouter(t)
	p, err := NewHostPolicy(router)
	require.NoError(t, err)

	hostE1, hostE2, hostW1 := &gocql.HostInfo{}, &gocql.HostInfo{}, &gocql.HostInfo{}
	p.hosts.Add(east1, hostE1)
	p.hosts.Add(east2, hostE2)
	p.hosts.Add(west1, hostW1)
	require.Len(t, router.Endpoints(), 3)

	reads := collect(p.next(t.Context(), types.NewStatement("SELECT * FROM t")))
	require.Len(t, reads, 3)
	assert.ElementsMatch(t, []*gocql.HostInfo{hostE1, hostE2}, reads[:2])
	assert.Same(t, hostW1, reads[2])

	writes := collect(p.next(t.Context(), types.NewBatch()))
	require.Len(t, writes, 3)
	assert.Same(t, hostW1, writes[0])
}

func TestHostPolicySkipsUnknownEndpoints(t *testing.T) {
	router := newRegionPairRouter(t)
	p, err := NewHostPolicy(router)
	require.NoError(t, err)

	hostW1 := &gocql.HostInfo{}
	p.hosts.Add(west1, hostW1)
	// Known to the router but never reported by the driver
	router.OnAdd(east1)

	hosts := collect(p.next(context.Background(), types.NewStatement("SELECT 1")))
	assert.Equal(t, []*gocql.HostInfo{hostW1}, hosts)
}

func TestHostPolicyRemove(t *testing.T) {
	router := newRegionPairRouter(t)
	p, err := NewHostPolicy(router)
	require.NoError(t, err)

	p.hosts.Add(east1, &gocql.HostInfo{})
	p.hosts.Add(east1, &gocql.HostInfo{})
	require.Len(t, router.Endpoints(), 1)

	p.hosts.Remove(east1)
	assert.Empty(t, router.Endpoints())
	assert.Empty(t, collect(p.next(t.Context(), types.NewOpaque())))
}

func TestHostPolicyNoops(t *testing.T) {
	p, err := NewHostPolicy(newRegionPairRouter(t))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		p.Init(nil)
		p.KeyspaceChanged(gocql.KeyspaceUpdateEvent{})
		p.SetPartitioner("Murmur3Partitioner")
	})

	var sel gocql.SelectedHost = selectedHost{info: &gocql.HostInfo{}}
	assert.NotNil(t, sel.Info())
	assert.NotPanics(t, func() { sel.Mark(nil) })
}
