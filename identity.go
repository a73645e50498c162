package critlog

import "os"

// WithHostnameFallback returns node with ID defaulted to the process
// hostname when node.ID is empty, mirroring the source's behaviour of
// falling back to the local node name when no explicit node id is
// configured.
func WithHostnameFallback(node NodeInfo) NodeInfo {
	if node.ID != "" {
		return node
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	node.ID = hostname

	return node
}
