package rpc

import (
	"encoding/json"
	"time"

	"github.com/LeJamon/simpledexd/internal/core/fee"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
	"github.com/LeJamon/simpledexd/internal/core/offer"
	"github.com/LeJamon/simpledexd/internal/node"
)

// MethodHandler handles one RPC method.
type MethodHandler interface {
	Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
	AdminOnly() bool
}

type methodFunc struct {
	fn    func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
	admin bool
}

func (m methodFunc) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return m.fn(ctx, params)
}

func (m methodFunc) AdminOnly() bool { return m.admin }

// MethodRegistry maps method names to handlers.
type MethodRegistry struct {
	methods map[string]MethodHandler
}

// NewMethodRegistry returns an empty registry.
func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]MethodHandler)}
}

// Register adds a handler under a method name.
func (r *MethodRegistry) Register(name string, handler MethodHandler) {
	r.methods[name] = handler
}

// Get looks a handler up.
func (r *MethodRegistry) Get(name string) (MethodHandler, bool) {
	h, ok := r.methods[name]
	return h, ok
}

// Names returns the registered method names.
func (r *MethodRegistry) Names() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}

func parseParams(params json.RawMessage, dst interface{}) *RpcError {
	if len(params) == 0 {
		return RpcErrorInvalidParams("Missing parameters")
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return RpcErrorInvalidParams("Invalid parameters: " + err.Error())
	}
	return nil
}

func parseAddress(field, value string) (keylet.Address, *RpcError) {
	addr, err := keylet.AddressFromHex(value)
	if err != nil {
		return keylet.Address{}, RpcErrorInvalidParams("Bad address in " + field + ": " + err.Error())
	}
	return addr, nil
}

// offerJSON is the wire shape of an offer record.
type offerJSON struct {
	Offer         string `json:"offer"`
	Slot          uint64 `json:"slot"`
	Offering      uint64 `json:"offering"`
	AcceptAtLeast uint64 `json:"accept_at_least"`
	Seed          uint16 `json:"seed"`
	Bump          uint8  `json:"bump"`
	Owner         string `json:"owner"`
	OfferAsset    string `json:"offer_asset"`
	AcceptAsset   string `json:"accept_asset"`
	RefundTo      string `json:"refund_to"`
	CreditTo      string `json:"credit_to"`
	RefundRentTo  string `json:"refund_rent_to"`
	Holding       string `json:"holding"`
}

func offerToJSON(o *offer.Offer) offerJSON {
	return offerJSON{
		Offer:         o.Key().String(),
		Slot:          o.Slot,
		Offering:      o.Offering,
		AcceptAtLeast: o.AcceptAtLeast,
		Seed:          o.Seed,
		Bump:          o.Bump,
		Owner:         o.Owner.String(),
		OfferAsset:    o.OfferAsset.String(),
		AcceptAsset:   o.AcceptAsset.String(),
		RefundTo:      o.RefundTo.String(),
		CreditTo:      o.CreditTo.String(),
		RefundRentTo:  o.RefundRentTo.String(),
		Holding:       o.HoldingKey().String(),
	}
}

// registerNodeMethods binds the node's operations into the registry. Shared
// between the HTTP and WebSocket servers.
func registerNodeMethods(r *MethodRegistry, n *node.Node) {
	r.Register("server_info", methodFunc{fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		return map[string]interface{}{
			"slot":           n.CurrentSlot(),
			"backend":        n.Backend(),
			"uptime_seconds": int64(n.Uptime() / time.Second),
			"taker_fee_bps":  fee.TakerFeeBps,
			"faucet":         n.FaucetEnabled(),
		}, nil
	}})

	r.Register("ping", methodFunc{fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		return map[string]interface{}{}, nil
	}})

	r.Register("offer", methodFunc{fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		var p offerParams
		if rpcErr := parseParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := parseAddress("offer", p.Offer)
		if rpcErr != nil {
			return nil, rpcErr
		}
		o, err := n.GetOffer(addr)
		if err != nil {
			return nil, mapEngineError(err)
		}
		holding, err := n.GetHolding(addr)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]interface{}{
			"offer":           offerToJSON(o),
			"holding_balance": holding.Balance,
		}, nil
	}})

	r.Register("account", methodFunc{fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		var p accountParams
		if rpcErr := parseParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := parseAddress("account", p.Account)
		if rpcErr != nil {
			return nil, rpcErr
		}
		acc, err := n.GetAccount(addr)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]interface{}{
			"account":   addr.String(),
			"asset":     acc.Asset.String(),
			"authority": acc.Authority.String(),
			"balance":   acc.Balance,
			"frozen":    acc.Frozen,
		}, nil
	}})

	r.Register("create_offer", methodFunc{fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		var p createOfferParams
		if rpcErr := parseParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
		var cp node.CreateParams
		var rpcErr *RpcError
		parse := func(field, value string, dst *keylet.Address) {
			if rpcErr != nil {
				return
			}
			*dst, rpcErr = parseAddress(field, value)
		}
		parse("owner", p.Owner, &cp.Owner)
		parse("pay_from", p.PayFrom, &cp.PayFrom)
		parse("refund_to", p.RefundTo, &cp.RefundTo)
		parse("credit_to", p.CreditTo, &cp.CreditTo)
		parse("refund_rent_to", p.RefundRentTo, &cp.RefundRentTo)
		parse("offer_asset", p.OfferAsset, &cp.OfferAsset)
		parse("accept_asset", p.AcceptAsset, &cp.AcceptAsset)
		if rpcErr != nil {
			return nil, rpcErr
		}
		cp.Seed = p.Seed
		cp.Offering = p.Offering
		cp.AcceptAtLeast = p.AcceptAtLeast

		o, addr, err := n.CreateOffer(cp)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]interface{}{
			"offer": offerToJSON(o),
			"addr":  addr.String(),
		}, nil
	}})

	r.Register("cancel_offer", methodFunc{fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		var p cancelOfferParams
		if rpcErr := parseParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
		owner, rpcErr := parseAddress("owner", p.Owner)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := parseAddress("offer", p.Offer)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := n.CancelOffer(owner, addr); err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]interface{}{"canceled": addr.String()}, nil
	}})

	r.Register("match_offers", methodFunc{fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		var p matchOffersParams
		if rpcErr := parseParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
		addrA, rpcErr := parseAddress("offer_a", p.OfferA)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addrB, rpcErr := parseAddress("offer_b", p.OfferB)
		if rpcErr != nil {
			return nil, rpcErr
		}
		res, err := n.MatchOffers(addrA, addrB)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]interface{}{
			"a_to_b":           res.Receipt.AToB,
			"b_to_a":           res.Receipt.BToA,
			"a_to_facilitator": res.Receipt.AToFacilitator,
			"b_to_facilitator": res.Receipt.BToFacilitator,
			"closed_a":         res.A.Closed,
			"closed_b":         res.B.Closed,
			"new_offering_a":   res.A.NewOffering,
			"new_offering_b":   res.B.NewOffering,
		}, nil
	}})

	r.Register("faucet_create_account", methodFunc{admin: true, fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		var p faucetAccountParams
		if rpcErr := parseParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
		account, rpcErr := parseAddress("account", p.Account)
		if rpcErr != nil {
			return nil, rpcErr
		}
		asset, rpcErr := parseAddress("asset", p.Asset)
		if rpcErr != nil {
			return nil, rpcErr
		}
		authority, rpcErr := parseAddress("authority", p.Authority)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := n.CreateAccount(account, asset, authority); err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]interface{}{"created": account.String()}, nil
	}})

	r.Register("faucet_mint", methodFunc{admin: true, fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
		var p faucetMintParams
		if rpcErr := parseParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
		account, rpcErr := parseAddress("account", p.Account)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := n.Mint(account, p.Amount); err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]interface{}{"minted": p.Amount}, nil
	}})
}
