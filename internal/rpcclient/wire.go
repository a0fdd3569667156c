package rpcclient

import (
	"encoding/json"

	bz "github.com/lightanchor/lightanchor/libs/bytes"
)

// jsonRPCRequest and jsonRPCResponse follow the CometBFT JSON-RPC 2.0
// envelope. Payload shapes beyond the envelope and the fields this package
// decodes are treated as opaque.
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

// wireSyncInfo mirrors the subset of CometBFT's `status` result used here.
type wireSyncInfo struct {
	LatestBlockHeight string `json:"latest_block_height"`
}

type wireStatusResult struct {
	NodeInfo struct {
		Network string `json:"network"`
	} `json:"node_info"`
	SyncInfo wireSyncInfo `json:"sync_info"`
}

// wireHeader mirrors the subset of a CometBFT block header this daemon
// verifies against.
type wireHeader struct {
	ChainID            string      `json:"chain_id"`
	Height             string      `json:"height"`
	Time               string      `json:"time"`
	ValidatorsHash     bz.HexBytes `json:"validators_hash"`
	NextValidatorsHash bz.HexBytes `json:"next_validators_hash"`
}

type wireCommitSig struct {
	ValidatorAddress bz.HexBytes `json:"validator_address"`
	Signature        []byte      `json:"signature"`
	BlockIDFlag      int         `json:"block_id_flag"`
}

type wireCommit struct {
	Height     string          `json:"height"`
	BlockID    struct{ Hash bz.HexBytes `json:"hash"` } `json:"block_id"`
	Signatures []wireCommitSig `json:"signatures"`
}

type wireSignedHeader struct {
	Header *wireHeader `json:"header"`
	Commit *wireCommit `json:"commit"`
}

type wireCommitResult struct {
	SignedHeader wireSignedHeader `json:"signed_header"`
}

type wireValidator struct {
	Address     bz.HexBytes `json:"address"`
	PubKey      bz.HexBytes `json:"pub_key"`
	VotingPower string      `json:"voting_power"`
}

type wireValidatorsResult struct {
	BlockHeight string          `json:"block_height"`
	Validators  []wireValidator `json:"validators"`
	Count       string          `json:"count"`
	Total       string          `json:"total"`
}

// blockIDFlagCommit is CometBFT's marker for "this validator's signature is
// present and valid"; other values (absent, nil) mean no vote was cast.
const blockIDFlagCommit = 2
