package rpc

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, delay time.Duration, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(delay):
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okBody = `{"jsonrpc":"2.0","id":1,"result":{"value":42}}`

func TestCallFirstSuccessWins(t *testing.T) {
	slow1 := rpcServer(t, 2*time.Second, 200, okBody)
	fast := rpcServer(t, 50*time.Millisecond, 200, `{"jsonrpc":"2.0","id":1,"result":"fast"}`)
	slow2 := rpcServer(t, 2*time.Second, 200, okBody)

	c, err := New([]string{slow1.URL, fast.URL, slow2.URL}, Options{RequestTimeout: 3 * time.Second})
	require.NoError(t, err)

	start := time.Now()
	res, err := c.Call(context.Background(), "getHealth", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "fast", res.String())
	assert.Less(t, elapsed, time.Second, "race must return with the fast endpoint, not wait for the slow ones")
}

func TestCallAllEndpointsFail(t *testing.T) {
	bad1 := rpcServer(t, 0, 500, "boom")
	bad2 := rpcServer(t, 0, 200, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"node is behind"}}`)
	bad3 := rpcServer(t, 0, 200, `{"jsonrpc":"2.0","id":1}`)

	c, err := New([]string{bad1.URL, bad2.URL, bad3.URL}, Options{RequestTimeout: time.Second})
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "getHealth", nil)
	require.Error(t, err)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Failures, 3, "aggregate error must carry every endpoint failure")
	assert.Contains(t, agg.Error(), "node is behind")
	assert.Contains(t, agg.Error(), "missing result")
}

func TestCallRPCErrorObjectCountsAsFailure(t *testing.T) {
	errSrv := rpcServer(t, 0, 200, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)
	ok := rpcServer(t, 100*time.Millisecond, 200, okBody)

	c, err := New([]string{errSrv.URL, ok.URL}, Options{RequestTimeout: time.Second})
	require.NoError(t, err)

	res, err := c.Call(context.Background(), "getThing", nil)
	require.NoError(t, err, "healthy endpoint should still win the race")
	assert.Equal(t, int64(42), res.Get("value").Int())
}

func TestCallContextCancel(t *testing.T) {
	slow := rpcServer(t, 5*time.Second, 200, okBody)
	c, err := New([]string{slow.URL}, Options{RequestTimeout: 10 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Call(ctx, "getHealth", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetAccountInfo(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	srv := rpcServer(t, 0, 200,
		`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"data":["`+data+`","base64"],"lamports":1}}}`)

	c, err := New([]string{srv.URL}, Options{RequestTimeout: time.Second})
	require.NoError(t, err)

	raw, err := c.GetAccountInfo(context.Background(), "someAddress")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)
}

func TestGetAccountInfoMissingAccount(t *testing.T) {
	srv := rpcServer(t, 0, 200, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":null}}`)

	c, err := New([]string{srv.URL}, Options{RequestTimeout: time.Second})
	require.NoError(t, err)

	_, err = c.GetAccountInfo(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestNewRequiresEndpoints(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}
