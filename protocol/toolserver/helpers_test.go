package toolserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newHTTPTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

type testRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      uint64 `json:"id"`
	Params  any    `json:"params,omitempty"`
}

type testRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ID uint64 `json:"id"`
}

func rpcCall(t *testing.T, baseURL, method string, params any, out any) {
	t.Helper()
	body, err := json.Marshal(testRPCRequest{JSONRPC: "2.0", Method: method, ID: 1, Params: params})
	require.NoError(t, err)

	resp, err := http.Post(baseURL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp testRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.Nil(t, rpcResp.Error, "unexpected rpc error: %+v", rpcResp.Error)

	if out != nil {
		require.NoError(t, json.Unmarshal(rpcResp.Result, out))
	}
}

func rpcCallExpectError(t *testing.T, baseURL, method string, params any) testRPCResponse {
	t.Helper()
	body, err := json.Marshal(testRPCRequest{JSONRPC: "2.0", Method: method, ID: 1, Params: params})
	require.NoError(t, err)

	resp, err := http.Post(baseURL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp testRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	return rpcResp
}
