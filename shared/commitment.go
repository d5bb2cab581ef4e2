package shared

import "github.com/spacemeshos/sha256-simd"

// CommitmentBytes returns the commitment a node's labels are bound to.
func CommitmentBytes(nodeId, commitmentAtxId []byte) []byte {
	h := sha256.New()
	h.Write(nodeId)
	h.Write(commitmentAtxId)
	return h.Sum(nil)
}
