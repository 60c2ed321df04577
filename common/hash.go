package common

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	ethereumCommon "github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"
)

// Hash is a 32-byte digest, based on Ethereum's common.Hash for its hex helpers.
type Hash ethereumCommon.Hash

// ComputeHash computes the BLAKE2b-256 hash of the given data
func ComputeHash(data []byte) []byte {
	hash := blake2b.Sum256(data)
	return hash[:]
}

func Blake2Hash(data []byte) Hash {
	return Hash(ethereumCommon.BytesToHash(ComputeHash(data)))
}

func (h Hash) Bytes() []byte {
	return ethereumCommon.Hash(h).Bytes()
}

func (h Hash) Hex() string {
	return ethereumCommon.Hash(h).Hex()
}

func (h Hash) String() string {
	return h.Hex()
}

// String_short prints the first and last two bytes, e.g. "1a2b..9f00".
func (h Hash) String_short() string {
	hex := h.Hex()
	return fmt.Sprintf("%s..%s", hex[2:6], hex[62:66])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	*h = Hash(ethereumCommon.HexToHash(hexStr))
	return nil
}

// Uint64ToBigEndian is used for ordered keys (LevelDB trace keys sort by processor then step).
func Uint64ToBigEndian(val uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return b
}
