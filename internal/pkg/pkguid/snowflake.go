package pkguid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// SnowflakeEpoch is 2024-01-01T00:00:00Z in milliseconds.
const SnowflakeEpoch int64 = 1704067200000

// IDs are 41 bits of time, 4 of node and 7 of sequence, which keeps them
// below 2^53 so JSON clients that decode numbers as doubles stay exact.
const (
	nodeBits uint8 = 4
	stepBits uint8 = 7

	// MaxNodeID is the highest node accepted by NewSnowflake.
	MaxNodeID int64 = 1<<nodeBits - 1
)

// Snowflake generates time-ordered numeric IDs. IDs from one node increase
// strictly, so they double as an insertion order.
type Snowflake struct {
	node *snowflake.Node
}

func generateRandomNodeID() (int64, error) {
	var nodeID int64
	err := binary.Read(rand.Reader, binary.BigEndian, &nodeID)
	if err != nil {
		return 0, err
	}

	return nodeID & MaxNodeID, nil
}

// NewSnowflake builds a generator for the given node. A negative node picks a
// random one, which is fine for a single instance.
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 {
		var err error
		if nodeID, err = generateRandomNodeID(); err != nil {
			return nil, err
		}
	}

	snowflake.Epoch = SnowflakeEpoch
	snowflake.NodeBits = nodeBits
	snowflake.StepBits = stepBits

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}

	return &Snowflake{node: node}, nil
}

// Generate returns a new unique numeric ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
