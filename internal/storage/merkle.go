package storage

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChunkSize is the leaf size of the storage network's hash tree.
const ChunkSize = 1024

// Leaf and interior nodes are hashed under distinct prefixes so a leaf can
// never be reinterpreted as an interior node.
const (
	leafPrefix     = 0x00
	interiorPrefix = 0x01
)

// MerkleRoot computes the content identifier of a payload: sha256 leaves over
// fixed-size chunks, pairwise interior hashing, the odd node promoted
// unchanged. Identical payloads always produce identical roots, which is what
// makes repeated persistence of the same document idempotent.
func MerkleRoot(payload []byte) string {
	var nodes [][]byte

	if len(payload) == 0 {
		nodes = [][]byte{leafHash(nil)}
	}

	for start := 0; start < len(payload); start += ChunkSize {
		end := start + ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		nodes = append(nodes, leafHash(payload[start:end]))
	}

	for len(nodes) > 1 {
		next := make([][]byte, 0, (len(nodes)+1)/2)
		for i := 0; i+1 < len(nodes); i += 2 {
			next = append(next, interiorHash(nodes[i], nodes[i+1]))
		}
		if len(nodes)%2 == 1 {
			next = append(next, nodes[len(nodes)-1])
		}
		nodes = next
	}

	return "0x" + hex.EncodeToString(nodes[0])
}

func leafHash(chunk []byte) []byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(chunk)
	return h.Sum(nil)
}

func interiorHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{interiorPrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
