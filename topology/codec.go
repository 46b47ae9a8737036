package topology

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tinylib/msgp/msgp"

	"github.com/arloliu/regionlb/types"
)

// UUIDExtensionType is the MessagePack extension type for host IDs.
// Types 3, 4 and 5 are used by msgp for complex64, complex128 and time.Time.
const UUIDExtensionType int8 = 10

// hostID adapts uuid.UUID to msgp.Extension.
type hostID uuid.UUID

func (h *hostID) ExtensionType() int8 {
	return UUIDExtensionType
}

func (h *hostID) Len() int {
	return len(h)
}

func (h *hostID) MarshalBinaryTo(b []byte) error {
	copy(b, h[:])

	return nil
}

func (h *hostID) UnmarshalBinary(b []byte) error {
	if len(b) != len(h) {
		return fmt.Errorf("regionlb/topology: host id must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)

	return nil
}

// Record field names.
const (
	fieldAddress = "addr"
	fieldRegion  = "region"
	fieldHostID  = "host_id"
	fieldUp      = "up"
)

// ErrInvalidRecord indicates an endpoint record without an address.
var ErrInvalidRecord = errors.New("regionlb/topology: record has no address")

// Record is the published state of one endpoint.
type Record struct {
	Endpoint types.Endpoint
	Up       bool
}

// MarshalMsg appends the MessagePack encoding of r to b.
//
// Records are encoded as a map so fields can be added without breaking
// older readers.
//
// Parameters:
//   - b: Buffer to append to (may be nil)
//
// Returns:
//   - []byte: The extended buffer
//   - error: If the host ID cannot be encoded
func (r *Record) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, fieldAddress)
	b = msgp.AppendString(b, r.Endpoint.Address)
	b = msgp.AppendString(b, fieldRegion)
	b = msgp.AppendString(b, r.Endpoint.Region)
	b = msgp.AppendString(b, fieldHostID)

	id := hostID(r.Endpoint.HostID)
	b, err := msgp.AppendExtension(b, &id)
	if err != nil {
		return b, err
	}

	b = msgp.AppendString(b, fieldUp)
	b = msgp.AppendBool(b, r.Up)

	return b, nil
}

// UnmarshalMsg decodes a record from b. Unknown fields are skipped.
//
// Parameters:
//   - b: MessagePack-encoded record
//
// Returns:
//   - []byte: Remaining bytes after the record
//   - error: If b is malformed or the record has no address
func (r *Record) UnmarshalMsg(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}

	*r = Record{}
	for range n {
		var key string
		key, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return b, err
		}

		switch key {
		case fieldAddress:
			r.Endpoint.Address, b, err = msgp.ReadStringBytes(b)
		case fieldRegion:
			r.Endpoint.Region, b, err = msgp.ReadStringBytes(b)
		case fieldHostID:
			var id hostID
			b, err = msgp.ReadExtensionBytes(b, &id)
			r.Endpoint.HostID = uuid.UUID(id)
		case fieldUp:
			r.Up, b, err = msgp.ReadBoolBytes(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return b, fmt.Errorf("regionlb/topology: decode %q: %w", key, err)
		}
	}

	if r.Endpoint.Address == "" {
		return b, ErrInvalidRecord
	}

	return b, nil
}

// KeyFor returns the KV key of an endpoint under prefix.
//
// Characters that are not valid in a KV key (":", "[", "]") are replaced
// so IPv6 addresses map to valid keys.
func KeyFor(prefix string, ep types.Endpoint) string {
	return prefix + "." + keyReplacer.Replace(ep.Address)
}

var keyReplacer = strings.NewReplacer(":", "_", "[", "", "]", "")
