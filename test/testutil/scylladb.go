package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/scylladb"
)

// ScyllaDBContainer wraps a ScyllaDB test container.
type ScyllaDBContainer struct {
	Container *scylladb.Container
	Host      string
	Keyspace  string
}

// ScyllaDBOptions configures the ScyllaDB container.
type ScyllaDBOptions struct {
	// Image is the ScyllaDB image to use. Defaults to "scylladb/scylla:6.2".
	Image string
	// Keyspace is the keyspace to create. Defaults to "regionlb_test".
	Keyspace string
	// Memory is the memory limit for ScyllaDB. Defaults to "512M".
	Memory string
	// SMP is the number of CPU cores for ScyllaDB. Defaults to 1.
	SMP int
}

// DefaultScyllaDBOptions returns default options for ScyllaDB container.
func DefaultScyllaDBOptions() ScyllaDBOptions {
	return ScyllaDBOptions{
		Image:    "scylladb/scylla:6.2",
		Keyspace: "regionlb_test",
		Memory:   "512M",
		SMP:      1,
	}
}

// RequireAIO skips the test when the host has no free Linux AIO slots.
//
// ScyllaDB needs AIO even with --reactor-backend=epoll.
// To fix: sudo sysctl -w fs.aio-max-nr=1048576
func RequireAIO(t *testing.T) {
	t.Helper()

	nr, err := readProcInt("/proc/sys/fs/aio-nr")
	if err != nil {
		t.Skipf("cannot read aio-nr: %v (not on Linux?)", err)
	}
	maxNr, err := readProcInt("/proc/sys/fs/aio-max-nr")
	if err != nil {
		t.Skipf("cannot read aio-max-nr: %v", err)
	}

	if nr >= maxNr {
		t.Skipf("no AIO slots available: aio-nr=%d >= aio-max-nr=%d", nr, maxNr)
	}
}

func readProcInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// StartScyllaDB starts a single-node ScyllaDB container and creates the
// test keyspace.
//
// The container is terminated when the test completes. The node reports
// datacenter "datacenter1".
//
// Parameters:
//   - ctx: Context for container operations
//   - t: Testing context for cleanup registration
//   - opts: Optional configuration (nil uses defaults)
//
// Returns:
//   - *ScyllaDBContainer: Container with connection details
//   - error: Error if container fails to start
func StartScyllaDB(ctx context.Context, t *testing.T, opts *ScyllaDBOptions) (*ScyllaDBContainer, error) {
	t.Helper()

	if opts == nil {
		defaultOpts := DefaultScyllaDBOptions()
		opts = &defaultOpts
	}

	container, err := scylladb.Run(ctx, opts.Image,
		scylladb.WithCustomCommands(
			fmt.Sprintf("--memory=%s", opts.Memory),
			fmt.Sprintf("--smp=%d", opts.SMP),
			"--developer-mode=1",
			"--overprovisioned=1",
			"--reactor-backend=epoll",
		),
	)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)

		return nil, fmt.Errorf("failed to start ScyllaDB container: %w", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate ScyllaDB container: %v", err)
		}
	})

	host, err := container.NonShardAwareConnectionHost(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection host: %w", err)
	}

	c := &ScyllaDBContainer{Container: container, Host: host, Keyspace: opts.Keyspace}

	session, err := c.Cluster("system").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	err = session.Query(fmt.Sprintf(`
		CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {'class': 'NetworkTopologyStrategy', 'datacenter1': 1}
	`, opts.Keyspace)).Exec()
	if err != nil {
		return nil, fmt.Errorf("failed to create keyspace: %w", err)
	}

	return c, nil
}

// Cluster returns a gocql cluster config pointing at the container.
//
// Initial host lookup is disabled because the node advertises its
// container-internal address, so hosts carry no datacenter.
//
// Parameters:
//   - keyspace: Keyspace to use; empty means the container's test keyspace
//
// Returns:
//   - *gocql.ClusterConfig: Config ready for policies to be set
func (c *ScyllaDBContainer) Cluster(keyspace string) *gocql.ClusterConfig {
	if keyspace == "" {
		keyspace = c.Keyspace
	}

	cluster := gocql.NewCluster(c.Host)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.One
	cluster.Timeout = 30 * time.Second
	cluster.ConnectTimeout = 30 * time.Second
	cluster.DisableInitialHostLookup = true

	return cluster
}
