package ethereum

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/stretchr/testify/assert"
)

const testRpcUrl = "http://localhost:8545"

func setup() *Client {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	cfg := DefaultEthereumClientConfig()
	cfg.BaseUrl = testRpcUrl
	cfg.Backoffs = []int{}

	client := NewClient(cfg, l)
	client.SetHttpClient(&http.Client{Transport: httpmock.DefaultTransport})
	return client
}

func Test_Client(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	t.Run("Should decode the current block number", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl,
			httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"result":"0x12d687"}`))

		client := setup()
		blockNumber, err := client.GetBlockNumberUint64(context.Background())
		assert.Nil(t, err)
		assert.Equal(t, uint64(1234567), blockNumber)
	})
	t.Run("Should send eth_chainId and decode the result", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl,
			func(req *http.Request) (*http.Response, error) {
				body, _ := io.ReadAll(req.Body)
				if !strings.Contains(string(body), `"method":"eth_chainId"`) {
					return httpmock.NewStringResponse(400, "unexpected method"), nil
				}
				return httpmock.NewStringResponse(200, `{"jsonrpc":"2.0","id":1,"result":"0xa4b1"}`), nil
			})

		client := setup()
		chainId, err := client.GetChainId(context.Background())
		assert.Nil(t, err)
		assert.Equal(t, uint64(42161), chainId)
	})
	t.Run("Should reject a non-hex result", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl,
			httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"result":12}`))

		client := setup()
		_, err := client.GetBlockNumberUint64(context.Background())
		assert.NotNil(t, err)
	})
	t.Run("Should surface a JSON-RPC error", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl,
			httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"boom"}}`))

		client := setup()
		_, err := client.GetBlockNumberUint64(context.Background())
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
	t.Run("Should fail on non-200 responses", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl, httpmock.NewStringResponder(502, `bad gateway`))

		client := setup()
		_, err := client.GetBlockNumberUint64(context.Background())
		assert.NotNil(t, err)
	})
}
