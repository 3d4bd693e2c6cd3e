// Package fakesdb provides a fake SurrealDB WebSocket server for testing purposes.
// It speaks the SurrealDB RPC protocol over WebSocket using CBOR encoding, keeps
// the documents written by insert and create in memory, and includes a few
// failure injection capabilities.
//
// The WebSocket server is implemented using gorilla/websocket.
//
// To inject failures, configure stub responses that match specific RPC
// methods and parameters, along with failure configurations that specify how
// the request fails (delays, invalid responses, dropped connections).
package fakesdb

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// CBOR tags used by SurrealDB.
const (
	TagTable      = 7
	TagRecordID   = 8
	TagCustomDate = 12
)

// FailureType represents the type of failure to inject during request processing
type FailureType string

const (
	// FailureNone indicates no failure injection
	FailureNone FailureType = "none"
	// FailureRequestDelay delays before processing the request
	FailureRequestDelay FailureType = "request_delay"
	// FailureInvalidResponse sends random binary data instead of a valid response
	FailureInvalidResponse FailureType = "invalid_response"
	// FailureWebSocketClose sends a WebSocket close frame with configurable code/reason
	FailureWebSocketClose FailureType = "websocket_close"
	// FailureDropConnection immediately closes the underlying network connection
	FailureDropConnection FailureType = "drop_connection"
)

var errFailureInjected = errors.New("failure injected")

// RequestMatcher defines criteria for matching incoming RPC requests.
type RequestMatcher struct {
	// Method is the RPC method name to match
	Method string
	// Matcher optionally matches on the request parameters.
	// If nil, only the method name is used for matching.
	Matcher func(params []any) bool
}

// RPCError is the error object of an RPC response.
type RPCError struct {
	Code    int    `cbor:"code"`
	Message string `cbor:"message"`
}

// StubResponse defines a pre-configured RPC response for matching requests.
type StubResponse struct {
	Matcher RequestMatcher
	// Result is returned on success (mutually exclusive with Error)
	Result any
	Error  *RPCError
	// Failures are applied before the response is sent
	Failures []FailureConfig
}

// FailureConfig defines how and when to inject a specific failure type
type FailureConfig struct {
	Type FailureType
	// Probability of triggering this failure (0.0 to 1.0)
	Probability float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
	// CloseCode and CloseReason are used by FailureWebSocketClose
	CloseCode   int
	CloseReason string
}

// Session is the namespace, database and authentication state of one connection.
type Session struct {
	Namespace string
	Database  string
	Username  string
	Token     string
}

type rpcRequest struct {
	ID     any    `cbor:"id"`
	Method string `cbor:"method"`
	Params []any  `cbor:"params"`
}

type rpcResponse struct {
	ID     any       `cbor:"id"`
	Result any       `cbor:"result"`
	Error  *RPCError `cbor:"error,omitempty"`
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	session *Session
}

// Server is a fake SurrealDB WebSocket server.
type Server struct {
	addr     string
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader
	dec      cbor.DecMode
	enc      cbor.EncMode

	mu             sync.RWMutex
	stubResponses  []StubResponse
	globalFailures []FailureConfig
	conns          map[*conn]struct{}
	tokens         map[string]string
	tables         map[string][]map[string]any

	// TokenSignIn is the token returned by any successful signin.
	TokenSignIn string

	// Logger receives connection level errors. It discards everything by default.
	Logger zerolog.Logger
}

// NewServer creates a new fake SurrealDB server.
// Use "127.0.0.1:0" to bind to a random available port.
func NewServer(addr string) *Server {
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	enc, err := cbor.EncOptions{}.EncMode()
	if err != nil {
		panic(err)
	}

	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"cbor"},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
		dec:         dec,
		enc:         enc,
		conns:       make(map[*conn]struct{}),
		tokens:      make(map[string]string),
		tables:      make(map[string][]map[string]any),
		TokenSignIn: "fakesdb-token",
		Logger:      zerolog.Nop(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", s.serveWS)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	return s
}

// AddStubResponse adds a stub response. Stubs are matched in the order they
// were added and take precedence over the built-in insert and create handling.
func (s *Server) AddStubResponse(stub StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = append(s.stubResponses, stub)
}

// SetGlobalFailures sets failure configurations that apply to all requests.
func (s *Server) SetGlobalFailures(failures []FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = failures
}

// Start starts the server and begins accepting WebSocket connections.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("serve")
		}
	}()
	return nil
}

// Stop closes the listener and every open connection.
func (s *Server) Stop() error {
	err := s.http.Close()

	s.mu.Lock()
	for c := range s.conns {
		c.ws.Close()
		delete(s.conns, c)
	}
	s.mu.Unlock()

	return err
}

// Address returns the actual address the server is listening on.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the ws:// endpoint of the server.
func (s *Server) URL() string {
	return "ws://" + s.Address()
}

// Inserted returns copies of the documents written to table, in write order.
func (s *Server) Inserted(table string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]map[string]any, 0, len(s.tables[table]))
	for _, doc := range s.tables[table] {
		cp := make(map[string]any, len(doc))
		for k, v := range doc {
			cp[k] = v
		}
		docs = append(docs, cp)
	}
	return docs
}

// DatetimeOf converts a decoded tag 12 value back to a time.Time.
func DatetimeOf(v any) (time.Time, bool) {
	tag, ok := v.(cbor.Tag)
	if !ok || tag.Number != TagCustomDate {
		return time.Time{}, false
	}
	parts, ok := tag.Content.([]any)
	if !ok || len(parts) != 2 {
		return time.Time{}, false
	}
	sec, ok1 := toInt64(parts[0])
	nsec, ok2 := toInt64(parts[1])
	if !ok1 || !ok2 {
		return time.Time{}, false
	}
	return time.Unix(sec, nsec).UTC(), true
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Debug().Err(err).Msg("upgrade")
		return
	}

	c := &conn{ws: ws}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := s.handle(c, data); err != nil {
			return
		}
	}
}

func (s *Server) handle(c *conn, data []byte) error {
	s.mu.RLock()
	globalFailures := s.globalFailures
	s.mu.RUnlock()

	for _, failure := range globalFailures {
		if shouldTriggerFailure(failure.Probability) {
			if err := s.applyFailure(c, failure); err != nil {
				return err
			}
		}
	}

	var req rpcRequest
	if err := s.dec.Unmarshal(data, &req); err != nil {
		return s.sendError(c, nil, -32700, "Parse error")
	}

	switch req.Method {
	case "use":
		return s.handleUse(c, &req)
	case "signin":
		return s.handleSignIn(c, &req)
	case "authenticate":
		return s.handleAuthenticate(c, &req)
	case "ping", "version":
		return s.sendResponse(c, req.ID, nil)
	}

	if msg := s.checkSession(c); msg != "" {
		return s.sendError(c, req.ID, -32000, "There was a problem with the database: There was a problem with authentication: "+msg)
	}

	if stub := s.matchStub(&req); stub != nil {
		for _, failure := range stub.Failures {
			if shouldTriggerFailure(failure.Probability) {
				if err := s.applyFailure(c, failure); err != nil {
					return err
				}
			}
		}
		if stub.Error != nil {
			return s.sendError(c, req.ID, stub.Error.Code, stub.Error.Message)
		}
		return s.sendResponse(c, req.ID, stub.Result)
	}

	switch req.Method {
	case "insert", "create":
		return s.handleInsert(c, &req)
	}
	return s.sendResponse(c, req.ID, nil)
}

func (s *Server) checkSession(c *conn) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case c.session == nil:
		return "Session not found"
	case c.session.Namespace == "" || c.session.Database == "":
		return "Specify a namespace and database"
	case c.session.Username == "":
		return "Not signed in"
	}
	return ""
}

func (s *Server) matchStub(req *rpcRequest) *StubResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.stubResponses {
		stub := &s.stubResponses[i]
		if stub.Matcher.Method != req.Method {
			continue
		}
		if stub.Matcher.Matcher == nil || stub.Matcher.Matcher(req.Params) {
			return stub
		}
	}
	return nil
}

func (s *Server) handleUse(c *conn, req *rpcRequest) error {
	if len(req.Params) < 2 {
		return s.sendError(c, req.ID, -32602, "handleUse: invalid params: use requires namespace and database parameters")
	}
	namespace, ok1 := req.Params[0].(string)
	database, ok2 := req.Params[1].(string)
	if !ok1 || !ok2 {
		return s.sendError(c, req.ID, -32602, "handleUse: invalid params: namespace and database must be strings")
	}

	s.mu.Lock()
	if c.session == nil {
		c.session = &Session{}
	}
	c.session.Namespace = namespace
	c.session.Database = database
	s.mu.Unlock()

	return s.sendResponse(c, req.ID, nil)
}

func (s *Server) handleSignIn(c *conn, req *rpcRequest) error {
	if len(req.Params) < 1 {
		return s.sendError(c, req.ID, -32602, "handleSignIn: invalid params: signin requires auth data")
	}

	username := ""
	if authData, ok := req.Params[0].(map[string]any); ok {
		if user, ok := authData["user"].(string); ok {
			username = user
		}
	}
	if username == "" {
		return s.sendError(c, req.ID, -32602, "handleSignIn: Signin requires username in auth data")
	}

	s.mu.Lock()
	if c.session == nil {
		s.mu.Unlock()
		return s.sendError(c, req.ID, -32000, "handleSignIn: Specify a namespace and database to use")
	}
	c.session.Username = username
	c.session.Token = s.TokenSignIn
	s.tokens[s.TokenSignIn] = username
	s.mu.Unlock()

	return s.sendResponse(c, req.ID, s.TokenSignIn)
}

func (s *Server) handleAuthenticate(c *conn, req *rpcRequest) error {
	if len(req.Params) < 1 {
		return s.sendError(c, req.ID, -32602, "handleAuthenticate: invalid params: authenticate requires token parameter")
	}
	token, ok := req.Params[0].(string)
	if !ok {
		return s.sendError(c, req.ID, -32602, "handleAuthenticate: invalid params: token must be a string")
	}

	s.mu.Lock()
	username, found := s.tokens[token]
	if c.session == nil || !found {
		s.mu.Unlock()
		return s.sendError(c, req.ID, -32000, "handleAuthenticate: Authentication failed")
	}
	c.session.Username = username
	c.session.Token = token
	s.mu.Unlock()

	return s.sendResponse(c, req.ID, nil)
}

func (s *Server) handleInsert(c *conn, req *rpcRequest) error {
	if len(req.Params) < 2 {
		return s.sendError(c, req.ID, -32602, fmt.Sprintf("%s: invalid params: table and data are required", req.Method))
	}
	table, ok := tableName(req.Params[0])
	if !ok {
		return s.sendError(c, req.ID, -32602, fmt.Sprintf("%s: invalid params: unexpected table %v", req.Method, req.Params[0]))
	}

	var docs []map[string]any
	switch data := req.Params[1].(type) {
	case map[string]any:
		docs = append(docs, data)
	case []any:
		for _, d := range data {
			doc, ok := d.(map[string]any)
			if !ok {
				return s.sendError(c, req.ID, -32602, fmt.Sprintf("%s: invalid params: record must be an object", req.Method))
			}
			docs = append(docs, doc)
		}
	default:
		return s.sendError(c, req.ID, -32602, fmt.Sprintf("%s: invalid params: record must be an object", req.Method))
	}

	result := make([]any, 0, len(docs))
	s.mu.Lock()
	for _, doc := range docs {
		if _, ok := doc["id"]; !ok {
			doc["id"] = cbor.Tag{Number: TagRecordID, Content: []any{table, uuid.NewString()}}
		}
		s.tables[table] = append(s.tables[table], doc)
		result = append(result, doc)
	}
	s.mu.Unlock()

	return s.sendResponse(c, req.ID, result)
}

func (s *Server) applyFailure(c *conn, failure FailureConfig) error {
	switch failure.Type {
	case FailureRequestDelay:
		time.Sleep(randomDuration(failure.MinDelay, failure.MaxDelay))

	case FailureInvalidResponse:
		data := make([]byte, 100)
		if _, err := rand.Read(data); err != nil {
			s.Logger.Error().Err(err).Msg("generate invalid response")
		}
		if err := c.write(data); err != nil {
			return err
		}
		return errFailureInjected

	case FailureWebSocketClose:
		code := failure.CloseCode
		if code == 0 {
			code = websocket.CloseGoingAway
		}
		reason := failure.CloseReason
		if reason == "" {
			reason = "failure injection"
		}
		c.writeMu.Lock()
		err := c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		if err != nil {
			s.Logger.Debug().Err(err).Msg("write close")
		}
		return errFailureInjected

	case FailureDropConnection:
		c.ws.NetConn().Close()
		return errFailureInjected
	}

	return nil
}

func (s *Server) sendResponse(c *conn, id, result any) error {
	data, err := s.enc.Marshal(rpcResponse{ID: id, Result: result})
	if err != nil {
		return s.sendError(c, id, -32603, fmt.Sprintf("sendResponse: %v", err))
	}
	return c.write(data)
}

func (s *Server) sendError(c *conn, id any, code int, message string) error {
	data, err := s.enc.Marshal(rpcResponse{ID: id, Error: &RPCError{Code: code, Message: message}})
	if err != nil {
		s.Logger.Error().Err(err).Msg("marshal error response")
		return err
	}
	return c.write(data)
}

func (c *conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func tableName(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case cbor.Tag:
		if t.Number != TagTable {
			return "", false
		}
		name, ok := t.Content.(string)
		return name, ok
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case uint64:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func shouldTriggerFailure(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<53))
	return float64(n.Int64())/float64(1<<53) < probability
}

func randomDuration(dMin, dMax time.Duration) time.Duration {
	if dMin >= dMax {
		return dMin
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(dMax-dMin)))
	return dMin + time.Duration(n.Int64())
}

// MatchMethod creates a RequestMatcher that matches only by method name
func MatchMethod(method string) RequestMatcher {
	return RequestMatcher{Method: method}
}

// MatchMethodWithParams creates a RequestMatcher that matches by method name
// and parameter values using a custom matcher function
func MatchMethodWithParams(method string, matcher func(params []any) bool) RequestMatcher {
	return RequestMatcher{Method: method, Matcher: matcher}
}

// SimpleStubResponse creates a stub response for a method without failure injection
func SimpleStubResponse(method string, response any) StubResponse {
	return StubResponse{Matcher: MatchMethod(method), Result: response}
}

// ErrorStubResponse creates a stub response that returns an RPC error
func ErrorStubResponse(method string, code int, message string) StubResponse {
	return StubResponse{
		Matcher: MatchMethod(method),
		Error:   &RPCError{Code: code, Message: message},
	}
}
