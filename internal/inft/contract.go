// Package inft reads the judge profile registry contract. The contract binds
// a judge's encrypted rubric to a token and records which wallets may use it.
package inft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Registry is the read surface of the judge profile contract.
type Registry interface {
	OwnerOf(ctx context.Context, tokenId uint64) (string, error)
	EncryptedURI(ctx context.Context, tokenId uint64) (string, error)
	Authorization(ctx context.Context, tokenId uint64, executor string) ([]byte, error)
	MetadataHash(ctx context.Context, tokenId uint64) (string, error)
}

var (
	ownerOfSelector       = selector("ownerOf(uint256)")
	encryptedURISelector  = selector("getEncryptedURI(uint256)")
	authorizationSelector = selector("getAuthorization(uint256,address)")
	metadataHashSelector  = selector("getMetadataHash(uint256)")
)

// Client reads the registry over plain JSON-RPC eth_call requests.
type Client struct {
	rpc      *resty.Client
	contract string
}

func NewClient(rpcURL, contractAddress string) *Client {
	return &Client{
		rpc:      resty.New().SetBaseURL(rpcURL).SetTimeout(15 * time.Second),
		contract: strings.ToLower(contractAddress),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	Id      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

func (c *Client) call(ctx context.Context, data string) ([]byte, error) {
	body := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_call",
		Params: []any{
			map[string]string{"to": c.contract, "data": data},
			"latest",
		},
		Id: 1,
	}

	var out rpcResponse
	res, err := c.rpc.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("/")
	if err != nil {
		return nil, fmt.Errorf("chain rpc unreachable: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("chain rpc returned status %d", res.StatusCode())
	}
	if out.Error != nil {
		return nil, fmt.Errorf("eth_call failed: %s (code %d)", out.Error.Message, out.Error.Code)
	}

	return decodeReturnData(out.Result)
}

func (c *Client) OwnerOf(ctx context.Context, tokenId uint64) (string, error) {
	ret, err := c.call(ctx, ownerOfSelector+encodeUint256(tokenId))
	if err != nil {
		return "", fmt.Errorf("error reading owner of token %d: %w", tokenId, err)
	}
	return decodeAddress(ret)
}

func (c *Client) EncryptedURI(ctx context.Context, tokenId uint64) (string, error) {
	ret, err := c.call(ctx, encryptedURISelector+encodeUint256(tokenId))
	if err != nil {
		return "", fmt.Errorf("error reading encrypted URI of token %d: %w", tokenId, err)
	}
	uri, err := decodeBytes(ret)
	if err != nil {
		return "", err
	}
	return string(uri), nil
}

func (c *Client) Authorization(ctx context.Context, tokenId uint64, executor string) ([]byte, error) {
	executorWord, err := encodeAddress(executor)
	if err != nil {
		return nil, err
	}

	ret, err := c.call(ctx, authorizationSelector+encodeUint256(tokenId)+executorWord)
	if err != nil {
		return nil, fmt.Errorf("error reading authorization of token %d for %s: %w", tokenId, executor, err)
	}
	return decodeBytes(ret)
}

func (c *Client) MetadataHash(ctx context.Context, tokenId uint64) (string, error) {
	ret, err := c.call(ctx, metadataHashSelector+encodeUint256(tokenId))
	if err != nil {
		return "", fmt.Errorf("error reading metadata hash of token %d: %w", tokenId, err)
	}
	return decodeBytes32(ret)
}
