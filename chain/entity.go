package chain

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
)

// BlockID is the identifier of a block. Its first 4 bytes hold the
// big endian block number
type BlockID [32]byte

// RefBlockNum returns the reference block number used in a
// transaction header
func (id BlockID) RefBlockNum() uint16 {
	return uint16(binary.BigEndian.Uint32(id[:4]))
}

// RefBlockPrefix returns the reference block prefix used in a
// transaction header
func (id BlockID) RefBlockPrefix() uint32 {
	return binary.LittleEndian.Uint32(id[8:12])
}

func (id BlockID) String() string {
	return hex.EncodeToString(id[:])
}

// Info is the head state of a chain
type Info struct {
	ChainID                  codec.ChainID
	HeadBlockNum             uint32
	HeadBlockTime            time.Time
	LastIrreversibleBlockNum uint32
	LastIrreversibleBlockID  BlockID
}

// PackedTransaction is a signed transaction ready to be pushed
type PackedTransaction struct {
	Signatures []ecc.Signature
	PackedTrx  []byte
}

// PushResult is returned by the chain once a transaction has been
// accepted
type PushResult struct {
	TransactionID string
	BlockNum      uint32
}

type getInfoResponse struct {
	ChainID                  string `json:"chain_id"`
	HeadBlockNum             uint32 `json:"head_block_num"`
	HeadBlockTime            string `json:"head_block_time"`
	LastIrreversibleBlockNum uint32 `json:"last_irreversible_block_num"`
	LastIrreversibleBlockID  string `json:"last_irreversible_block_id"`
}

type getRawAbiRequest struct {
	AccountName string `json:"account_name"`
}

type getRawAbiResponse struct {
	AccountName string `json:"account_name"`
	AbiHash     string `json:"abi_hash"`
	Abi         string `json:"abi"`
}

type pushTransactionRequest struct {
	Signatures            []string `json:"signatures"`
	Compression           int      `json:"compression"`
	PackedContextFreeData string   `json:"packed_context_free_data"`
	PackedTrx             string   `json:"packed_trx"`
}

type pushTransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	Processed     struct {
		BlockNum uint32 `json:"block_num"`
	} `json:"processed"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   struct {
		Name string `json:"name"`
		What string `json:"what"`
	} `json:"error"`
}
