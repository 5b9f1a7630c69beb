package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/range-protocol/vault-sidecar/internal/config"
	"go.uber.org/zap"
)

type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint   `json:"id"`

	timeout time.Duration
}

type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

var jsonRPCVersion = "2.0"

type EthereumClientConfig struct {
	BaseUrl              string
	ChunkedBatchCallSize int
	// Backoffs is the wait in seconds before each retry of a failed Call.
	Backoffs []int
}

func ConvertGlobalConfigToEthereumConfig(cfg *config.EthereumRpcConfig) *EthereumClientConfig {
	c := DefaultEthereumClientConfig()
	c.BaseUrl = cfg.BaseUrl
	if cfg.ChunkedBatchCallSize > 0 {
		c.ChunkedBatchCallSize = cfg.ChunkedBatchCallSize
	}
	return c
}

func DefaultEthereumClientConfig() *EthereumClientConfig {
	return &EthereumClientConfig{
		ChunkedBatchCallSize: 25,
		Backoffs:             []int{1, 3, 5, 10, 20, 30, 60},
	}
}

type Client struct {
	Logger       *zap.Logger
	httpClient   *http.Client
	clientConfig *EthereumClientConfig

	callerLock   sync.Mutex
	callerClient *ethclient.Client
}

func NewClient(cfg *EthereumClientConfig, l *zap.Logger) *Client {
	client := &http.Client{
		Timeout: time.Second * 10,
	}

	l.Sugar().Infow("Creating new Ethereum client", zap.String("baseUrl", cfg.BaseUrl))

	return &Client{
		httpClient:   client,
		Logger:       l,
		clientConfig: cfg,
	}
}

// SetHttpClient replaces the transport used for both raw JSON-RPC calls and contract calls.
func (c *Client) SetHttpClient(client *http.Client) {
	c.callerLock.Lock()
	defer c.callerLock.Unlock()
	c.httpClient = client
	c.callerClient = nil
}

// GetEthereumContractCaller returns an ethclient sharing this client's http transport.
func (c *Client) GetEthereumContractCaller(ctx context.Context) (*ethclient.Client, error) {
	c.callerLock.Lock()
	defer c.callerLock.Unlock()

	if c.callerClient != nil {
		return c.callerClient, nil
	}
	rpcClient, err := rpc.DialOptions(ctx, c.clientConfig.BaseUrl, rpc.WithHTTPClient(c.httpClient))
	if err != nil {
		c.Logger.Sugar().Errorw("Failed to create new eth client", zap.Error(err))
		return nil, err
	}
	c.callerClient = ethclient.NewClient(rpcClient)
	return c.callerClient, nil
}

func (c *Client) GetBlockNumberUint64(ctx context.Context) (uint64, error) {
	res, err := c.Call(ctx, newRequest(rpcMethod_BlockNumber, 1))
	if err != nil {
		return 0, err
	}
	return decodeQuantity(res.Result)
}

func (c *Client) GetChainId(ctx context.Context) (uint64, error) {
	res, err := c.Call(ctx, newRequest(rpcMethod_ChainId, 1))
	if err != nil {
		return 0, err
	}
	return decodeQuantity(res.Result)
}

func (c *Client) call(ctx context.Context, rpcRequest *RPCRequest) (*RPCResponse, error) {
	requestBody, err := json.Marshal(rpcRequest)
	if err != nil {
		return nil, err
	}
	c.Logger.Sugar().Debugw("Request body", zap.String("requestBody", string(requestBody)))

	timeout := rpcRequest.timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.clientConfig.BaseUrl, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received http error code %+v", response.StatusCode)
	}

	destination := &RPCResponse{}
	if err := json.Unmarshal(responseBody, destination); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if destination.Error != nil {
		return nil, fmt.Errorf("received error response: %+v", destination.Error)
	}
	return destination, nil
}

// Call performs a JSON-RPC request, retrying with the configured backoffs.
func (c *Client) Call(ctx context.Context, rpcRequest *RPCRequest) (*RPCResponse, error) {
	res, err := c.call(ctx, rpcRequest)
	if err == nil {
		return res, nil
	}
	for _, backoff := range c.clientConfig.Backoffs {
		c.Logger.Sugar().Errorw("Failed to call",
			zap.Error(err),
			zap.Int("backoffSecs", backoff),
			zap.String("method", rpcRequest.Method),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second * time.Duration(backoff)):
		}
		res, err = c.call(ctx, rpcRequest)
		if err == nil {
			c.Logger.Sugar().Infow("Successfully called after backoff",
				zap.Int("backoffSecs", backoff),
				zap.String("method", rpcRequest.Method),
			)
			return res, nil
		}
	}
	c.Logger.Sugar().Errorw("Exceeded retries for Call", zap.String("method", rpcRequest.Method))
	return nil, fmt.Errorf("exceeded retries for %s: %w", rpcRequest.Method, err)
}
