package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LeJamon/simpledexd/internal/node"
)

const (
	wsReadLimit    = 512 * 1024
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 54 * time.Second
)

// WebSocketServer handles WebSocket connections for RPC calls and real-time
// event subscriptions.
type WebSocketServer struct {
	upgrader            websocket.Upgrader
	subscriptionManager *SubscriptionManager
	methodRegistry      *MethodRegistry
	connections         map[string]*WebSocketConnection
	connectionsMutex    sync.RWMutex
}

// WebSocketConnection is one upgraded client connection.
type WebSocketConnection struct {
	ID            string
	conn          *websocket.Conn
	subscriptions map[SubscriptionType]struct{}
	sendChannel   chan []byte
	closeChannel  chan struct{}
	closeOnce     sync.Once
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWebSocketServer builds a WebSocket server sharing the node's methods
// and the given subscription manager.
func NewWebSocketServer(n *node.Node, manager *SubscriptionManager) *WebSocketServer {
	registry := NewMethodRegistry()
	registerNodeMethods(registry, n)
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subscriptionManager: manager,
		methodRegistry:      registry,
		connections:         make(map[string]*WebSocketConnection),
	}
}

// ServeHTTP upgrades the connection and starts its read and write loops.
func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	wsConn := &WebSocketConnection{
		ID:            generateConnectionID(),
		conn:          conn,
		subscriptions: make(map[SubscriptionType]struct{}),
		sendChannel:   make(chan []byte, 256),
		closeChannel:  make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}

	ws.connectionsMutex.Lock()
	ws.connections[wsConn.ID] = wsConn
	ws.connectionsMutex.Unlock()

	ws.subscriptionManager.AddConnection(&Connection{
		ID:            wsConn.ID,
		Subscriptions: wsConn.subscriptions,
		SendChannel:   wsConn.sendChannel,
		CloseChannel:  wsConn.closeChannel,
	})

	go ws.readLoop(wsConn)
	go ws.writeLoop(wsConn)
}

// readLoop processes incoming messages until the connection drops.
func (ws *WebSocketServer) readLoop(wsConn *WebSocketConnection) {
	defer ws.closeConnection(wsConn)

	wsConn.conn.SetReadLimit(wsReadLimit)
	wsConn.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	wsConn.conn.SetPongHandler(func(string) error {
		wsConn.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		_, message, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		ws.handleMessage(wsConn, message)
	}
}

// writeLoop drains the send channel and keeps the connection alive with
// pings.
func (ws *WebSocketServer) writeLoop(wsConn *WebSocketConnection) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wsConn.ctx.Done():
			return
		case <-wsConn.closeChannel:
			return
		case <-ticker.C:
			wsConn.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := wsConn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case message := <-wsConn.sendChannel:
			wsConn.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := wsConn.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket send failed: %v", err)
				return
			}
		}
	}
}

// wsCommand is the incoming WebSocket envelope: command and id at top
// level, everything else passed through as params.
type wsCommand struct {
	Command string
	ID      interface{}
	Params  json.RawMessage
}

func (ws *WebSocketServer) handleMessage(wsConn *WebSocketConnection, message []byte) {
	var cmdMap map[string]interface{}
	if err := json.Unmarshal(message, &cmdMap); err != nil {
		ws.sendError(wsConn, RpcErrorInvalidParams("Invalid JSON: "+err.Error()), nil)
		return
	}

	command, ok := cmdMap["command"].(string)
	if !ok || command == "" {
		ws.sendError(wsConn, NewRpcError(RpcMISSING_COMMAND, "missingCommand", "Missing command field"), nil)
		return
	}

	cmd := wsCommand{Command: command, ID: cmdMap["id"]}
	delete(cmdMap, "command")
	delete(cmdMap, "id")
	if len(cmdMap) > 0 {
		paramsBytes, _ := json.Marshal(cmdMap)
		cmd.Params = paramsBytes
	}

	rpcCtx := &RpcContext{
		Context:  wsConn.ctx,
		ClientIP: getWebSocketClientIP(wsConn.conn),
	}
	rpcCtx.IsAdmin = isLoopback(rpcCtx.ClientIP)

	switch cmd.Command {
	case "subscribe":
		ws.handleSubscribe(wsConn, cmd)
	case "unsubscribe":
		ws.handleUnsubscribe(wsConn, cmd)
	default:
		ws.handleRPCMethod(wsConn, rpcCtx, cmd)
	}
}

func (ws *WebSocketServer) handleSubscribe(wsConn *WebSocketConnection, cmd wsCommand) {
	var request SubscriptionRequest
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &request); err != nil {
			ws.sendError(wsConn, RpcErrorInvalidParams("Invalid subscription parameters"), cmd.ID)
			return
		}
	}

	if rpcErr := ws.subscriptionManager.HandleSubscribe(&Connection{
		ID:            wsConn.ID,
		Subscriptions: wsConn.subscriptions,
		SendChannel:   wsConn.sendChannel,
		CloseChannel:  wsConn.closeChannel,
	}, request); rpcErr != nil {
		ws.sendError(wsConn, rpcErr, cmd.ID)
		return
	}

	ws.sendResult(wsConn, cmd.ID, map[string]interface{}{"subscribed": true})
}

func (ws *WebSocketServer) handleUnsubscribe(wsConn *WebSocketConnection, cmd wsCommand) {
	var request SubscriptionRequest
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &request); err != nil {
			ws.sendError(wsConn, RpcErrorInvalidParams("Invalid unsubscription parameters"), cmd.ID)
			return
		}
	}

	if rpcErr := ws.subscriptionManager.HandleUnsubscribe(&Connection{
		ID:            wsConn.ID,
		Subscriptions: wsConn.subscriptions,
		SendChannel:   wsConn.sendChannel,
		CloseChannel:  wsConn.closeChannel,
	}, request); rpcErr != nil {
		ws.sendError(wsConn, rpcErr, cmd.ID)
		return
	}

	ws.sendResult(wsConn, cmd.ID, map[string]interface{}{"unsubscribed": true})
}

func (ws *WebSocketServer) handleRPCMethod(wsConn *WebSocketConnection, ctx *RpcContext, cmd wsCommand) {
	handler, exists := ws.methodRegistry.Get(cmd.Command)
	if !exists {
		ws.sendError(wsConn, RpcErrorMethodNotFound(cmd.Command), cmd.ID)
		return
	}
	if handler.AdminOnly() && !ctx.IsAdmin {
		ws.sendError(wsConn, NewRpcError(RpcUNAUTHORIZED, "noPermission", "Command requires admin access"), cmd.ID)
		return
	}

	result, rpcErr := handler.Handle(ctx, cmd.Params)
	if rpcErr != nil {
		ws.sendError(wsConn, rpcErr, cmd.ID)
		return
	}
	ws.sendResult(wsConn, cmd.ID, result)
}

func (ws *WebSocketServer) sendResult(wsConn *WebSocketConnection, id, result interface{}) {
	response := map[string]interface{}{
		"type":   "response",
		"status": "success",
		"result": result,
	}
	if id != nil {
		response["id"] = id
	}
	ws.send(wsConn, response)
}

// sendError uses flat error fields at the top level of the response.
func (ws *WebSocketServer) sendError(wsConn *WebSocketConnection, rpcErr *RpcError, id interface{}) {
	response := map[string]interface{}{
		"type":          "response",
		"status":        "error",
		"error":         rpcErr.ErrorString,
		"error_code":    rpcErr.Code,
		"error_message": rpcErr.Message,
	}
	if id != nil {
		response["id"] = id
	}
	ws.send(wsConn, response)
}

func (ws *WebSocketServer) send(wsConn *WebSocketConnection, response map[string]interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("Failed to marshal WebSocket response: %v", err)
		return
	}
	select {
	case wsConn.sendChannel <- data:
	case <-wsConn.ctx.Done():
	default:
		log.Printf("WebSocket send channel full, closing connection %s", wsConn.ID)
		ws.closeConnection(wsConn)
	}
}

func (ws *WebSocketServer) closeConnection(wsConn *WebSocketConnection) {
	wsConn.closeOnce.Do(func() {
		wsConn.cancel()

		ws.connectionsMutex.Lock()
		delete(ws.connections, wsConn.ID)
		ws.connectionsMutex.Unlock()

		ws.subscriptionManager.RemoveConnection(wsConn.ID)
		wsConn.conn.Close()
	})
}

var connSeq atomic.Uint64

func generateConnectionID() string {
	return fmt.Sprintf("conn_%d_%d", time.Now().UnixNano(), connSeq.Add(1))
}

func getWebSocketClientIP(conn *websocket.Conn) string {
	remoteAddr := conn.RemoteAddr().String()
	for i := len(remoteAddr) - 1; i >= 0; i-- {
		if remoteAddr[i] == ':' {
			return remoteAddr[:i]
		}
	}
	return remoteAddr
}
