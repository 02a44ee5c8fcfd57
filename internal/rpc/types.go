// Package rpc exposes the node over HTTP JSON-RPC and WebSocket. Requests
// use the {"method": ..., "params": [{...}]} envelope; responses carry a
// result object with a status field. WebSocket clients can additionally
// subscribe to lifecycle event streams.
package rpc

import (
	"context"
	"errors"

	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/storage/recordstore"
)

// RPC error codes.
const (
	RpcUNKNOWN_METHOD  = 31
	RpcINVALID_PARAMS  = 26
	RpcNOT_FOUND       = 19
	RpcUNAUTHORIZED    = 6
	RpcNO_MATCH        = 40
	RpcBAD_ADDRESS     = 41
	RpcASSET_MISMATCH  = 42
	RpcASSET_FROZEN    = 43
	RpcSELF_REFUND     = 44
	RpcINSUFFICIENT    = 45
	RpcOVERFLOW        = 46
	RpcNOT_SUPPORTED   = 29
	RpcMISSING_COMMAND = 27
	RpcINTERNAL        = 73
)

// RpcError is an error surfaced to RPC clients.
type RpcError struct {
	Code        int    `json:"error_code"`
	ErrorString string `json:"error"`
	Message     string `json:"error_message"`
}

// NewRpcError builds an error response value.
func NewRpcError(code int, errorString, message string) *RpcError {
	return &RpcError{Code: code, ErrorString: errorString, Message: message}
}

// RpcErrorMethodNotFound reports an unknown method name.
func RpcErrorMethodNotFound(method string) *RpcError {
	return NewRpcError(RpcUNKNOWN_METHOD, "unknownCmd", "Unknown method: "+method)
}

// RpcErrorInvalidParams reports malformed or missing parameters.
func RpcErrorInvalidParams(detail string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", detail)
}

// mapEngineError translates engine and storage errors into RPC errors.
func mapEngineError(err error) *RpcError {
	switch {
	case errors.Is(err, dexerr.ErrNotFound), errors.Is(err, recordstore.ErrNotFound):
		return NewRpcError(RpcNOT_FOUND, "entryNotFound", "Record not found")
	case errors.Is(err, dexerr.ErrOffersDoNotMatch):
		return NewRpcError(RpcNO_MATCH, "offersDoNotMatch", "The offers' price ranges do not overlap")
	case errors.Is(err, dexerr.ErrUnauthorized):
		return NewRpcError(RpcUNAUTHORIZED, "noPermission", "Insufficient authorization")
	case errors.Is(err, dexerr.ErrAddressDerivation):
		return NewRpcError(RpcBAD_ADDRESS, "badAddress", "Address does not match its derivation")
	case errors.Is(err, dexerr.ErrAssetMismatch):
		return NewRpcError(RpcASSET_MISMATCH, "assetMismatch", "Account bound to a different asset")
	case errors.Is(err, dexerr.ErrAssetFrozen):
		return NewRpcError(RpcASSET_FROZEN, "assetFrozen", "Account is frozen")
	case errors.Is(err, dexerr.ErrSelfRefund):
		return NewRpcError(RpcSELF_REFUND, "selfRefund", "Refund target points back at the offer")
	case errors.Is(err, dexerr.ErrInsufficientBalance), errors.Is(err, recordstore.ErrInsufficientDeposit):
		return NewRpcError(RpcINSUFFICIENT, "insufficientFunds", "Insufficient balance")
	case errors.Is(err, dexerr.ErrOverflow):
		return NewRpcError(RpcOVERFLOW, "overflow", "Numerical overflow")
	case errors.Is(err, dexerr.ErrSerialization):
		return NewRpcError(RpcINTERNAL, "malformedRecord", "Malformed record")
	default:
		return NewRpcError(RpcINTERNAL, "internal", err.Error())
	}
}

// RpcContext carries per-request metadata into handlers.
type RpcContext struct {
	Context  context.Context
	IsAdmin  bool
	ClientIP string
}

// Request parameter shapes. Addresses travel as 64-char hex strings.

type createOfferParams struct {
	Owner         string `json:"owner"`
	PayFrom       string `json:"pay_from"`
	RefundTo      string `json:"refund_to"`
	CreditTo      string `json:"credit_to"`
	RefundRentTo  string `json:"refund_rent_to"`
	OfferAsset    string `json:"offer_asset"`
	AcceptAsset   string `json:"accept_asset"`
	Seed          uint16 `json:"seed"`
	Offering      uint64 `json:"offering"`
	AcceptAtLeast uint64 `json:"accept_at_least"`
}

type cancelOfferParams struct {
	Owner string `json:"owner"`
	Offer string `json:"offer"`
}

type matchOffersParams struct {
	OfferA string `json:"offer_a"`
	OfferB string `json:"offer_b"`
}

type offerParams struct {
	Offer string `json:"offer"`
}

type accountParams struct {
	Account string `json:"account"`
}

type faucetAccountParams struct {
	Account   string `json:"account"`
	Asset     string `json:"asset"`
	Authority string `json:"authority"`
}

type faucetMintParams struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}
