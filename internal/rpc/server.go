package rpc

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/LeJamon/simpledexd/internal/node"
)

// Server handles HTTP JSON-RPC requests.
type Server struct {
	registry *MethodRegistry
	timeout  time.Duration
}

// NewServer builds an HTTP server over the node's methods.
func NewServer(n *node.Node, timeout time.Duration) *Server {
	s := &Server{
		registry: NewMethodRegistry(),
		timeout:  timeout,
	}
	registerNodeMethods(s.registry, n)
	return s
}

// rpcRequest is the request envelope:
// {"method": "method_name", "params": [{...}]}
type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case "OPTIONS":
		w.WriteHeader(http.StatusOK)
	case "GET":
		s.handleGetRequest(w, r)
	case "POST":
		s.handlePostRequest(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetRequest serves simple query methods via ?command=.
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("command")
	if method == "" {
		method = "server_info"
	}

	ctx := &RpcContext{
		Context:  r.Context(),
		ClientIP: getClientIP(r),
	}
	result, rpcErr := s.executeMethod(method, nil, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, nil, NewRpcError(RpcINTERNAL, "internal", "Failed to read request body"))
		return
	}
	defer r.Body.Close()

	var request rpcRequest
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeResponse(w, nil, NewRpcError(RpcINVALID_PARAMS, "jsonInvalid", "Invalid JSON: "+err.Error()))
		return
	}
	if request.Method == "" {
		s.writeResponse(w, nil, NewRpcError(RpcMISSING_COMMAND, "missingCommand", "Missing method field"))
		return
	}

	// Params travel as an array with a single object.
	var params json.RawMessage
	if len(request.Params) > 0 {
		params = request.Params[0]
	}

	ctx := &RpcContext{
		Context:  r.Context(),
		IsAdmin:  isLoopback(getClientIP(r)),
		ClientIP: getClientIP(r),
	}
	result, rpcErr := s.executeMethod(request.Method, params, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) executeMethod(method string, params json.RawMessage, ctx *RpcContext) (interface{}, *RpcError) {
	handler, exists := s.registry.Get(method)
	if !exists {
		return nil, RpcErrorMethodNotFound(method)
	}
	if handler.AdminOnly() && !ctx.IsAdmin {
		return nil, NewRpcError(RpcUNAUTHORIZED, "noPermission", "Method requires admin access")
	}
	return handler.Handle(ctx, params)
}

// writeResponse writes the response envelope: result.status is "success" or
// "error", with the error fields inside the result object.
func (s *Server) writeResponse(w http.ResponseWriter, result interface{}, rpcErr *RpcError) {
	response := make(map[string]interface{})
	if rpcErr != nil {
		response["result"] = map[string]interface{}{
			"status":        "error",
			"error":         rpcErr.ErrorString,
			"error_code":    rpcErr.Code,
			"error_message": rpcErr.Message,
		}
	} else {
		if resultMap, ok := result.(map[string]interface{}); ok {
			resultMap["status"] = "success"
			response["result"] = resultMap
		} else {
			response["result"] = map[string]interface{}{
				"status": "success",
				"data":   result,
			}
		}
	}

	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func isLoopback(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || ip == "[::1]"
}
