package database

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

// Encode serializes the full chain into its compact binary form. This is
// what is written to storage and sent to peers.
func Encode(blocks []Block) ([]byte, error) {
	data, err := rlp.EncodeToBytes(blocks)
	if err != nil {
		return nil, fmt.Errorf("encoding chain: %w", err)
	}

	return data, nil
}

// Decode converts the binary form back into a chain.
func Decode(data []byte) ([]Block, error) {
	var blocks []Block
	if err := rlp.DecodeBytes(data, &blocks); err != nil {
		return nil, fmt.Errorf("decoding chain: %w", err)
	}

	return blocks, nil
}

// DecodeFrom reads a full chain from the reader.
func DecodeFrom(r io.Reader) ([]Block, error) {
	var blocks []Block
	if err := rlp.Decode(r, &blocks); err != nil {
		return nil, fmt.Errorf("decoding chain: %w", err)
	}

	return blocks, nil
}
