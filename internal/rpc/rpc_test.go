package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/simpledexd/internal/config"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
	"github.com/LeJamon/simpledexd/internal/node"
)

func testAddr(tag string) keylet.Address {
	var a keylet.Address
	a[0] = 0xB7
	copy(a[1:], tag)
	return a
}

type rpcClient struct {
	t   *testing.T
	url string
}

func (c *rpcClient) call(method string, params interface{}) map[string]interface{} {
	c.t.Helper()
	body := map[string]interface{}{
		"method": method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	payload, err := json.Marshal(body)
	require.NoError(c.t, err)

	resp, err := http.Post(c.url, "application/json", bytes.NewReader(payload))
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	var decoded map[string]interface{}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&decoded))
	result, ok := decoded["result"].(map[string]interface{})
	require.True(c.t, ok, "response has no result object")
	return result
}

func (c *rpcClient) mustSucceed(method string, params interface{}) map[string]interface{} {
	c.t.Helper()
	result := c.call(method, params)
	require.Equal(c.t, "success", result["status"], "method %s failed: %v", method, result)
	return result
}

func newTestServer(t *testing.T) (*rpcClient, *node.Node) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Backend = "memory"
	cfg.Server.EnableFaucet = true

	assetX := testAddr("asset-x")
	assetY := testAddr("asset-y")
	cfg.Fees.FacilitatorAccounts = map[string]string{
		assetX.String(): testAddr("fac-x").String(),
		assetY.String(): testAddr("fac-y").String(),
	}

	n, err := node.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })

	srv := httptest.NewServer(NewServer(n, 30*time.Second))
	t.Cleanup(srv.Close)
	return &rpcClient{t: t, url: srv.URL}, n
}

// setupAccounts provisions a user with one account per asset plus the
// facilitator accounts, all through the faucet surface.
func setupAccounts(t *testing.T, c *rpcClient) {
	t.Helper()
	facID := testAddr("fac")
	accounts := []struct {
		account, asset, authority string
	}{
		{testAddr("fac-x").String(), testAddr("asset-x").String(), facID.String()},
		{testAddr("fac-y").String(), testAddr("asset-y").String(), facID.String()},
		{testAddr("alice-x").String(), testAddr("asset-x").String(), testAddr("alice").String()},
		{testAddr("alice-y").String(), testAddr("asset-y").String(), testAddr("alice").String()},
		{testAddr("bob-x").String(), testAddr("asset-x").String(), testAddr("bob").String()},
		{testAddr("bob-y").String(), testAddr("asset-y").String(), testAddr("bob").String()},
	}
	for _, acc := range accounts {
		c.mustSucceed("faucet_create_account", map[string]interface{}{
			"account":   acc.account,
			"asset":     acc.asset,
			"authority": acc.authority,
		})
	}
	c.mustSucceed("faucet_mint", map[string]interface{}{
		"account": testAddr("alice-x").String(),
		"amount":  uint64(2_000_000),
	})
	c.mustSucceed("faucet_mint", map[string]interface{}{
		"account": testAddr("bob-y").String(),
		"amount":  uint64(300_000),
	})
}

func createOfferReq(owner, payFrom, refundTo, creditTo string, offerAsset, acceptAsset string, seed uint16, offering, accept uint64) map[string]interface{} {
	return map[string]interface{}{
		"owner":           owner,
		"pay_from":        payFrom,
		"refund_to":       refundTo,
		"credit_to":       creditTo,
		"refund_rent_to":  owner,
		"offer_asset":     offerAsset,
		"accept_asset":    acceptAsset,
		"seed":            seed,
		"offering":        offering,
		"accept_at_least": accept,
	}
}

func TestServerInfo(t *testing.T) {
	c, _ := newTestServer(t)
	result := c.mustSucceed("server_info", nil)
	assert.Equal(t, "memory", result["backend"])
	assert.Equal(t, true, result["faucet"])
	assert.GreaterOrEqual(t, result["slot"].(float64), float64(1))
}

func TestUnknownMethod(t *testing.T) {
	c, _ := newTestServer(t)
	result := c.call("no_such_method", nil)
	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "unknownCmd", result["error"])
}

func TestOfferLifecycleOverRPC(t *testing.T) {
	c, _ := newTestServer(t)
	setupAccounts(t, c)

	// Alice offers 1_000_000 X for at least 100_000 Y.
	created := c.mustSucceed("create_offer", createOfferReq(
		testAddr("alice").String(), testAddr("alice-x").String(),
		testAddr("alice-x").String(), testAddr("alice-y").String(),
		testAddr("asset-x").String(), testAddr("asset-y").String(),
		1, 1_000_000, 100_000))
	offerA := created["addr"].(string)

	// The record is queryable with its escrow balance.
	looked := c.mustSucceed("offer", map[string]interface{}{"offer": offerA})
	offerObj := looked["offer"].(map[string]interface{})
	assert.Equal(t, float64(1_000_000), offerObj["offering"])
	assert.Equal(t, float64(100_000), offerObj["accept_at_least"])
	assert.Equal(t, float64(1_001_000), looked["holding_balance"])

	// Bob offers 200_000 Y for at least 1_000_000 X: crosses with excess.
	created = c.mustSucceed("create_offer", createOfferReq(
		testAddr("bob").String(), testAddr("bob-y").String(),
		testAddr("bob-y").String(), testAddr("bob-x").String(),
		testAddr("asset-y").String(), testAddr("asset-x").String(),
		1, 200_000, 1_000_000))
	offerB := created["addr"].(string)

	matched := c.mustSucceed("match_offers", map[string]interface{}{
		"offer_a": offerA,
		"offer_b": offerB,
	})
	assert.Equal(t, float64(1_000_000), matched["a_to_b"])
	assert.Equal(t, float64(150_000), matched["b_to_a"])
	assert.Equal(t, true, matched["closed_a"])
	assert.Equal(t, true, matched["closed_b"])

	// Both records are gone afterwards.
	gone := c.call("offer", map[string]interface{}{"offer": offerA})
	assert.Equal(t, "error", gone["status"])
	assert.Equal(t, "entryNotFound", gone["error"])

	// Balances reflect the settlement.
	acct := c.mustSucceed("account", map[string]interface{}{"account": testAddr("bob-x").String()})
	assert.Equal(t, float64(1_000_000), acct["balance"])
	acct = c.mustSucceed("account", map[string]interface{}{"account": testAddr("alice-y").String()})
	assert.Equal(t, float64(150_000), acct["balance"])
}

func TestCancelOverRPC(t *testing.T) {
	c, _ := newTestServer(t)
	setupAccounts(t, c)

	created := c.mustSucceed("create_offer", createOfferReq(
		testAddr("alice").String(), testAddr("alice-x").String(),
		testAddr("alice-x").String(), testAddr("alice-y").String(),
		testAddr("asset-x").String(), testAddr("asset-y").String(),
		2, 500_000, 60_000))
	addr := created["addr"].(string)

	// A stranger cannot cancel.
	res := c.call("cancel_offer", map[string]interface{}{
		"owner": testAddr("bob").String(),
		"offer": addr,
	})
	assert.Equal(t, "error", res["status"])
	assert.Equal(t, "noPermission", res["error"])

	c.mustSucceed("cancel_offer", map[string]interface{}{
		"owner": testAddr("alice").String(),
		"offer": addr,
	})
	acct := c.mustSucceed("account", map[string]interface{}{"account": testAddr("alice-x").String()})
	assert.Equal(t, float64(2_000_000), acct["balance"])
}

func TestNonCrossingOverRPC(t *testing.T) {
	c, _ := newTestServer(t)
	setupAccounts(t, c)

	created := c.mustSucceed("create_offer", createOfferReq(
		testAddr("alice").String(), testAddr("alice-x").String(),
		testAddr("alice-x").String(), testAddr("alice-y").String(),
		testAddr("asset-x").String(), testAddr("asset-y").String(),
		3, 100, 50))
	offerA := created["addr"].(string)

	created = c.mustSucceed("create_offer", createOfferReq(
		testAddr("bob").String(), testAddr("bob-y").String(),
		testAddr("bob-y").String(), testAddr("bob-x").String(),
		testAddr("asset-y").String(), testAddr("asset-x").String(),
		3, 10, 100))
	offerB := created["addr"].(string)

	res := c.call("match_offers", map[string]interface{}{
		"offer_a": offerA,
		"offer_b": offerB,
	})
	assert.Equal(t, "error", res["status"])
	assert.Equal(t, "offersDoNotMatch", res["error"])
}

func TestSelfMatchOverRPC(t *testing.T) {
	c, _ := newTestServer(t)
	setupAccounts(t, c)

	created := c.mustSucceed("create_offer", createOfferReq(
		testAddr("alice").String(), testAddr("alice-x").String(),
		testAddr("alice-x").String(), testAddr("alice-y").String(),
		testAddr("asset-x").String(), testAddr("asset-y").String(),
		4, 100, 10))
	offerA := created["addr"].(string)

	res := c.call("match_offers", map[string]interface{}{
		"offer_a": offerA,
		"offer_b": offerA,
	})
	assert.Equal(t, "error", res["status"])
	assert.Equal(t, "offersDoNotMatch", res["error"])

	// The rejection left the record and its escrow exactly as created.
	looked := c.mustSucceed("offer", map[string]interface{}{"offer": offerA})
	offerObj := looked["offer"].(map[string]interface{})
	assert.Equal(t, float64(100), offerObj["offering"])
	assert.Equal(t, float64(10), offerObj["accept_at_least"])
	assert.Equal(t, float64(100), looked["holding_balance"])
}

func TestInvalidParams(t *testing.T) {
	c, _ := newTestServer(t)
	res := c.call("offer", map[string]interface{}{"offer": "nothex"})
	assert.Equal(t, "error", res["status"])
	assert.Equal(t, "invalidParams", res["error"])

	res = c.call("offer", nil)
	assert.Equal(t, "error", res["status"])
}

func TestGetServerInfo(t *testing.T) {
	c, _ := newTestServer(t)
	resp, err := http.Get(fmt.Sprintf("%s?command=server_info", c.url))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	result := decoded["result"].(map[string]interface{})
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "memory", result["backend"])
}

func TestSubscriptionManager(t *testing.T) {
	m := NewSubscriptionManager()
	conn := &Connection{
		ID:            "c1",
		Subscriptions: make(map[SubscriptionType]struct{}),
		SendChannel:   make(chan []byte, 4),
		CloseChannel:  make(chan struct{}),
	}
	m.AddConnection(conn)

	require.Nil(t, m.HandleSubscribe(conn, SubscriptionRequest{Streams: []SubscriptionType{SubMatched}}))
	assert.Equal(t, 1, m.GetSubscriberCount(SubMatched))

	m.BroadcastToStream(SubMatched, []byte(`{"type":"offersMatched"}`))
	m.BroadcastToStream(SubCreated, []byte(`{"type":"offerCreated"}`))
	require.Len(t, conn.SendChannel, 1)
	assert.JSONEq(t, `{"type":"offersMatched"}`, string(<-conn.SendChannel))

	// The catch-all stream receives everything.
	require.Nil(t, m.HandleSubscribe(conn, SubscriptionRequest{Streams: []SubscriptionType{SubOffers}}))
	m.BroadcastToStream(SubCreated, []byte(`{"type":"offerCreated"}`))
	require.Len(t, conn.SendChannel, 1)

	rpcErr := m.HandleSubscribe(conn, SubscriptionRequest{Streams: []SubscriptionType{"bogus"}})
	require.NotNil(t, rpcErr)
	assert.Equal(t, "invalidParams", rpcErr.ErrorString)

	require.Nil(t, m.HandleUnsubscribe(conn, SubscriptionRequest{}))
	assert.Equal(t, 0, m.GetSubscriberCount(SubMatched))

	m.RemoveConnection("c1")
	m.BroadcastToStream(SubMatched, []byte(`{}`))
}
