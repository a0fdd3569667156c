package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	bz "github.com/lightanchor/lightanchor/libs/bytes"
	"github.com/lightanchor/lightanchor/types"
)

const validatorsPerPage = 100

// HTTPClient is the CometBFT JSON-RPC-over-HTTP implementation of Client.
// One HTTPClient is constructed per remote (primary or witness) and its
// underlying http.Client / http.Transport is reused across every call.
type HTTPClient struct {
	addr       string
	endpoint   string
	httpClient *http.Client
	cache      *validatorCache
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a Client talking to the CometBFT JSON-RPC endpoint at
// endpoint (e.g. "http://127.0.0.1:26657"). timeout bounds every individual
// RPC call.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		addr:     endpoint,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cache: newValidatorCache(),
	}
}

// Addr implements Client.
func (c *HTTPClient) Addr() string { return c.addr }

func (c *HTTPClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	paramBytes, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "marshal params")
	}
	reqBody, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  paramBytes,
	})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := readAllPooled(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s: server error %d: %s", method, resp.StatusCode, raw)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return errors.Wrap(err, "unmarshal envelope")
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(rpcResp.Result, out), "unmarshal result")
}

// LatestHeight implements Client.
func (c *HTTPClient) LatestHeight(ctx context.Context) (int64, error) {
	var result wireStatusResult
	if err := c.call(ctx, "status", struct{}{}, &result); err != nil {
		return 0, err
	}
	h, err := strconv.ParseInt(result.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse latest_block_height")
	}
	return h, nil
}

// LightBlock implements Client: it fetches the signed header at height, then
// the validator set that signed it and the validator set that will sign
// height+1.
func (c *HTTPClient) LightBlock(ctx context.Context, height int64) (*types.LightBlock, error) {
	sh, err := c.fetchSignedHeader(ctx, height)
	if err != nil {
		return nil, err
	}

	vals, err := c.fetchValidators(ctx, sh.Header.Height)
	if err != nil {
		return nil, errors.Wrap(err, "fetch validators")
	}
	nextVals, err := c.fetchValidators(ctx, sh.Header.Height+1)
	if err != nil {
		return nil, errors.Wrap(err, "fetch next validators")
	}

	return &types.LightBlock{
		SignedHeader:     sh,
		ValidatorSet:     vals,
		NextValidatorSet: nextVals,
	}, nil
}

func (c *HTTPClient) fetchSignedHeader(ctx context.Context, height int64) (*types.SignedHeader, error) {
	params := map[string]string{}
	if height > 0 {
		params["height"] = strconv.FormatInt(height, 10)
	}
	var result wireCommitResult
	if err := c.call(ctx, "commit", params, &result); err != nil {
		return nil, err
	}
	wh := result.SignedHeader.Header
	if wh == nil {
		return nil, fmt.Errorf("commit: missing header")
	}
	h, err := strconv.ParseInt(wh.Height, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse height")
	}
	t, err := time.Parse(time.RFC3339Nano, wh.Time)
	if err != nil {
		return nil, errors.Wrap(err, "parse time")
	}

	wc := result.SignedHeader.Commit
	if wc == nil {
		return nil, fmt.Errorf("commit: missing commit")
	}
	commitHeight, err := strconv.ParseInt(wc.Height, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse commit height")
	}

	sigs := make([]types.CommitSig, 0, len(wc.Signatures))
	for _, ws := range wc.Signatures {
		sigs = append(sigs, types.CommitSig{
			ValidatorAddress: ws.ValidatorAddress,
			Signature:        ws.Signature,
			Absent:           ws.BlockIDFlag != blockIDFlagCommit,
		})
	}

	return &types.SignedHeader{
		Header: &types.Header{
			ChainID:            wh.ChainID,
			Height:             h,
			Time:               t,
			ValidatorsHash:     wh.ValidatorsHash,
			NextValidatorsHash: wh.NextValidatorsHash,
		},
		Commit: &types.Commit{
			Height:    commitHeight,
			BlockHash: wc.BlockID.Hash,
			Sigs:      sigs,
		},
	}, nil
}

// fetchValidators retrieves the full, paginated validator set at height,
// going through the process-lifetime cache first.
func (c *HTTPClient) fetchValidators(ctx context.Context, height int64) (*types.ValidatorSet, error) {
	if vs, ok := c.cache.get(c.addr, height); ok {
		return vs, nil
	}

	var all []*types.Validator
	page := 1
	total := -1
	for total < 0 || len(all) < total {
		var result wireValidatorsResult
		params := map[string]string{
			"height":   strconv.FormatInt(height, 10),
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(validatorsPerPage),
		}
		if err := c.call(ctx, "validators", params, &result); err != nil {
			return nil, err
		}
		for _, wv := range result.Validators {
			power, err := strconv.ParseInt(wv.VotingPower, 10, 64)
			if err != nil {
				return nil, errors.Wrap(err, "parse voting_power")
			}
			all = append(all, &types.Validator{PubKey: bz.HexBytes(wv.PubKey), VotingPower: power})
		}
		if t, err := strconv.Atoi(result.Total); err == nil {
			total = t
		} else {
			break
		}
		if len(result.Validators) == 0 {
			break
		}
		page++
	}

	vs := &types.ValidatorSet{Validators: all}
	c.cache.put(c.addr, height, vs)
	return vs, nil
}

// SubmitEvidence implements Client.
func (c *HTTPClient) SubmitEvidence(ctx context.Context, ev *types.Evidence) error {
	params := map[string]interface{}{
		"evidence": ev,
	}
	return c.call(ctx, "broadcast_evidence", params, nil)
}
