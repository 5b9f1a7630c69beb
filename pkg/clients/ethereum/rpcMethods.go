package ethereum

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const defaultRequestTimeout = time.Second * 10

type rpcMethod struct {
	name    string
	timeout time.Duration
}

var (
	rpcMethod_BlockNumber = rpcMethod{name: "eth_blockNumber", timeout: time.Second * 5}
	rpcMethod_ChainId     = rpcMethod{name: "eth_chainId", timeout: time.Second * 5}
)

func newRequest(method rpcMethod, id uint, params ...any) *RPCRequest {
	req := &RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method.name,
		ID:      id,
		timeout: method.timeout,
	}
	if len(params) > 0 {
		req.Params = params
	}
	return req
}

// decodeQuantity parses a hex encoded JSON-RPC quantity result.
func decodeQuantity(res json.RawMessage) (uint64, error) {
	var quantity string
	if err := json.Unmarshal(res, &quantity); err != nil {
		return 0, fmt.Errorf("failed to decode quantity: %w", err)
	}
	return hexutil.DecodeUint64(quantity)
}
