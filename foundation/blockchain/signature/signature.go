// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ZeroHash represents a hash code of zeros. It is the previous block hash
// of the genesis block.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// moonID is an arbitrary number for signing messages. This will make it
// clear that the signature comes from the Moon blockchain.
// Ethereum and Bitcoin do this as well, but they use the value of 27.
const moonID = 29

// =============================================================================

// Hash returns the SHA-256 digest of the data as a lower case hex string
// without a prefix. Leading zero characters of this string are what the
// proof of work counts.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return common.Bytes2Hex(hash[:])
}

// HashValue returns a unique string for the value based on its binary
// encoding.
func HashValue(value any) string {
	data, err := rlp.EncodeToBytes(value)
	if err != nil {
		return ZeroHash
	}

	return Hash(data)
}

// Sign uses the specified private key to sign the data. The 65 byte
// signature is returned in the [R|S|V] format with the moon id applied to V.
func Sign(value any, privateKey *ecdsa.PrivateKey) ([]byte, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return nil, err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return nil, errors.New("invalid signature")
	}

	sig[crypto.RecoveryIDOffset] += moonID

	return sig, nil
}

// VerifySignature verifies the signature conforms to our standards.
func VerifySignature(sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length, got %d, exp %d", len(sig), crypto.SignatureLength)
	}

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset] - moonID
	if v != 0 && v != 1 {
		return errors.New("invalid recovery id")
	}

	// Check the signature values are valid.
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, false) {
		return errors.New("invalid signature values")
	}

	return nil
}

// FromAddress extracts the address for the account that signed the data.
func FromAddress(value any, sig []byte) (string, error) {
	if err := VerifySignature(sig); err != nil {
		return "", err
	}

	// NOTE: If the same exact data for the given signature is not provided
	// we will get the wrong from address. The public key is being extracted
	// from the data and signature.

	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Remove the moon id before recovering the public key.
	raw := make([]byte, crypto.SignatureLength)
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] -= moonID

	publicKey, err := crypto.SigToPub(data, raw)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// =============================================================================

// LoadOrCreateKey loads the private key stored at the specified path. When
// the file does not exist a new key is generated and saved. The boolean
// reports if a key was created.
func LoadOrCreateKey(path string) (*ecdsa.PrivateKey, bool, error) {
	privateKey, err := crypto.LoadECDSA(path)
	switch {
	case err == nil:
		return privateKey, false, nil

	case !errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("loading key %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, false, fmt.Errorf("creating key folder: %w", err)
	}

	privateKey, err = crypto.GenerateKey()
	if err != nil {
		return nil, false, fmt.Errorf("generating key: %w", err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, false, fmt.Errorf("saving key %s: %w", path, err)
	}

	return privateKey, true, nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the Moon stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Encode the data.
	v, err := rlp.EncodeToBytes(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array. This will provide
	// a data length consistency with all data.
	txHash := sha256.Sum256(v)

	// Convert the stamp into a slice of bytes. This stamp is
	// used so signatures we produce when signing data
	// are always unique to the Moon blockchain.
	stamp := []byte("\x19Moon Signed Message:\n32")

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the data.
	data := crypto.Keccak256(stamp, txHash[:])

	return data, nil
}
