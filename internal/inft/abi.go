package inft

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Keccak256 returns the keccak-256 digest used by the chain for function
// selectors and metadata hashes.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// selector returns the 4-byte function selector for an ABI signature such as
// "ownerOf(uint256)", hex encoded with a 0x prefix.
func selector(signature string) string {
	return "0x" + hex.EncodeToString(Keccak256([]byte(signature))[:4])
}

func encodeUint256(v uint64) string {
	return fmt.Sprintf("%064x", v)
}

func encodeAddress(addr string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(addr), "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if len(raw) != 20 {
		return "", fmt.Errorf("invalid address %q: expected 20 bytes, got %d", addr, len(raw))
	}
	return fmt.Sprintf("%064x", raw), nil
}

func decodeReturnData(result string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(result, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid return data %q: %w", result, err)
	}
	return raw, nil
}

// decodeBytes unpacks a single dynamic bytes (or string) return value:
// a 32-byte offset word, a 32-byte length word, then the payload. Return data
// comes from an external RPC node, so every word is range-checked without
// arithmetic that could wrap.
func decodeBytes(ret []byte) ([]byte, error) {
	if len(ret) < 64 {
		return nil, fmt.Errorf("return data too short for dynamic value: %d bytes", len(ret))
	}

	offset, err := wordToUint(ret[:32])
	if err != nil {
		return nil, fmt.Errorf("invalid dynamic value offset: %w", err)
	}
	if offset > uint64(len(ret))-32 {
		return nil, fmt.Errorf("dynamic value offset %d out of range", offset)
	}

	length, err := wordToUint(ret[offset : offset+32])
	if err != nil {
		return nil, fmt.Errorf("invalid dynamic value length: %w", err)
	}
	start := offset + 32
	if length > uint64(len(ret))-start {
		return nil, fmt.Errorf("dynamic value length %d out of range", length)
	}

	return ret[start : start+length], nil
}

func decodeAddress(ret []byte) (string, error) {
	if len(ret) < 32 {
		return "", fmt.Errorf("return data too short for address: %d bytes", len(ret))
	}
	return "0x" + hex.EncodeToString(ret[12:32]), nil
}

func decodeBytes32(ret []byte) (string, error) {
	if len(ret) < 32 {
		return "", fmt.Errorf("return data too short for bytes32: %d bytes", len(ret))
	}
	return "0x" + hex.EncodeToString(ret[:32]), nil
}

// wordToUint reads a 32-byte word as a uint64. Offsets and lengths fit in
// the low 8 bytes; a word with high bytes set is malformed return data, not
// a small value.
func wordToUint(word []byte) (uint64, error) {
	for _, b := range word[:len(word)-8] {
		if b != 0 {
			return 0, fmt.Errorf("value word exceeds uint64 range: 0x%x", word)
		}
	}

	var v uint64
	for _, b := range word[len(word)-8:] {
		v = v<<8 | uint64(b)
	}
	return v, nil
}
