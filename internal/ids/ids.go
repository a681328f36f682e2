package ids

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// New returns a time-ordered unique id. It is a snowflake id for the node
// in SNOWFLAKE_NODE (default 1), or a KSUID when the node cannot be set up.
func New() string {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if raw := os.Getenv("SNOWFLAKE_NODE"); raw != "" {
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
				nodeID = parsed
			}
		}
		node, _ = snowflake.NewNode(nodeID)
	})
	if node == nil {
		return ksuid.New().String()
	}
	return node.Generate().String()
}
