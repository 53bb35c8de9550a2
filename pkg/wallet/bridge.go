package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// BridgeProvider is a Provider talking EIP-1193 JSON-RPC to a browser or
// mobile wallet over a websocket bridge. Requests are JSON-RPC 2.0 calls,
// wallet events (accountsChanged, chainChanged, disconnect) come as
// notifications.
type BridgeProvider struct {
	ws   *websocket.Conn
	opts BridgeOptions
	log  *zap.Logger

	nextID   atomic.Uint64
	lock     sync.Mutex
	pending  map[uint64]chan *bridgeMessage
	requests chan *bridgeRequest
	events   chan Event
	shutdown chan struct{}
	done     chan struct{}
	closed   atomic.Bool
}

// BridgeOptions are BridgeProvider settings.
type BridgeOptions struct {
	DialTimeout time.Duration
	// WriteTimeout limits a single websocket write, user interaction time
	// is limited by request contexts only.
	WriteTimeout time.Duration
	Log          *zap.Logger
}

type bridgeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// bridgeMessage is either a response or a notification.
type bridgeMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

const (
	bridgeReadLimit  = 1024 * 1024
	bridgePongLimit  = 60 * time.Second
	bridgePingPeriod = bridgePongLimit / 2

	defaultBridgeWriteTimeout = 10 * time.Second
	bridgeEventBuffer         = 16
)

// NewBridgeProvider connects to the wallet bridge at the given ws:// or
// wss:// endpoint. Connection failures are reported as ErrWalletUnavailable.
func NewBridgeProvider(ctx context.Context, endpoint string, opts BridgeOptions) (*BridgeProvider, error) {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultBridgeWriteTimeout
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	dialer := websocket.Dialer{HandshakeTimeout: opts.DialTimeout}
	ws, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	p := &BridgeProvider{
		ws:       ws,
		opts:     opts,
		log:      opts.Log,
		pending:  make(map[uint64]chan *bridgeMessage),
		requests: make(chan *bridgeRequest),
		events:   make(chan Event, bridgeEventBuffer),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.wsReader()
	go p.wsWriter()
	return p, nil
}

func (p *BridgeProvider) wsReader() {
	p.ws.SetReadLimit(bridgeReadLimit)
	p.ws.SetPongHandler(func(string) error { return p.ws.SetReadDeadline(time.Now().Add(bridgePongLimit)) })
readloop:
	for {
		msg := new(bridgeMessage)
		_ = p.ws.SetReadDeadline(time.Now().Add(bridgePongLimit))
		if err := p.ws.ReadJSON(msg); err != nil {
			if !p.closed.Load() {
				p.log.Warn("wallet bridge connection lost", zap.Error(err))
			}
			break
		}
		switch {
		case msg.ID != nil:
			p.lock.Lock()
			ch, ok := p.pending[*msg.ID]
			delete(p.pending, *msg.ID)
			p.lock.Unlock()
			if ok {
				ch <- msg // Buffered.
			}
		case msg.Method != "":
			ev, err := notificationToEvent(msg)
			if err != nil {
				p.log.Debug("bad wallet notification", zap.String("method", msg.Method), zap.Error(err))
				continue
			}
			select {
			case p.events <- ev:
			case <-p.shutdown:
				break readloop
			}
			if ev.Type == Disconnected {
				break readloop
			}
		default:
			p.log.Debug("malformed wallet bridge message")
		}
	}
	close(p.done)
	close(p.events)
}

func (p *BridgeProvider) wsWriter() {
	pingTicker := time.NewTicker(bridgePingPeriod)
	defer p.ws.Close()
	defer pingTicker.Stop()
	for {
		select {
		case <-p.shutdown:
			_ = p.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(p.opts.WriteTimeout))
			return
		case <-p.done:
			return
		case req := <-p.requests:
			_ = p.ws.SetWriteDeadline(time.Now().Add(p.opts.WriteTimeout))
			if err := p.ws.WriteJSON(req); err != nil {
				return
			}
		case <-pingTicker.C:
			_ = p.ws.SetWriteDeadline(time.Now().Add(p.opts.WriteTimeout))
			if err := p.ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

func notificationToEvent(msg *bridgeMessage) (Event, error) {
	switch msg.Method {
	case "accountsChanged":
		var params [1][]common.Address
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return Event{}, err
		}
		accs := params[0]
		if accs == nil {
			accs = []common.Address{}
		}
		return Event{Type: AccountsChanged, Accounts: accs}, nil
	case "chainChanged":
		var params [1]hexutil.Uint64
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return Event{}, err
		}
		return Event{Type: ChainChanged, ChainID: uint64(params[0])}, nil
	case "disconnect":
		return Event{Type: Disconnected}, nil
	}
	return Event{}, fmt.Errorf("unknown notification %q", msg.Method)
}

func (p *BridgeProvider) call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	req := &bridgeRequest{
		JSONRPC: "2.0",
		ID:      p.nextID.Inc(),
		Method:  method,
		Params:  params,
	}
	ch := make(chan *bridgeMessage, 1)
	p.lock.Lock()
	p.pending[req.ID] = ch
	p.lock.Unlock()
	defer func() {
		p.lock.Lock()
		delete(p.pending, req.ID)
		p.lock.Unlock()
	}()

	select {
	case <-p.done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	case p.requests <- req:
	}
	var resp *bridgeMessage
	select {
	case <-p.done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	case resp = <-ch:
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("bad %s response: %w", method, err)
	}
	return nil
}

// RequestAccounts implements the Provider interface.
func (p *BridgeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var res []common.Address
	if err := p.call(ctx, "eth_requestAccounts", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Accounts implements the Provider interface.
func (p *BridgeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var res []common.Address
	if err := p.call(ctx, "eth_accounts", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// ChainID implements the Provider interface.
func (p *BridgeProvider) ChainID(ctx context.Context) (uint64, error) {
	var res hexutil.Uint64
	if err := p.call(ctx, "eth_chainId", nil, &res); err != nil {
		return 0, err
	}
	return uint64(res), nil
}

type switchChainParam struct {
	ChainID hexutil.Uint64 `json:"chainId"`
}

type addChainParam struct {
	ChainID           hexutil.Uint64 `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
}

// SwitchChain implements the Provider interface.
func (p *BridgeProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	return p.call(ctx, "wallet_switchEthereumChain", []any{switchChainParam{ChainID: hexutil.Uint64(chainID)}}, nil)
}

// AddChain implements the Provider interface.
func (p *BridgeProvider) AddChain(ctx context.Context, params ChainParams) error {
	return p.call(ctx, "wallet_addEthereumChain", []any{addChainParam{
		ChainID:           hexutil.Uint64(params.ChainID),
		ChainName:         params.ChainName,
		RPCURLs:           params.RPCURLs,
		BlockExplorerURLs: params.BlockExplorerURLs,
		NativeCurrency:    params.NativeCurrency,
	}}, nil)
}

// SignTypedData implements the Provider interface using eth_signTypedData_v4.
func (p *BridgeProvider) SignTypedData(ctx context.Context, from common.Address, td apitypes.TypedData) ([]byte, error) {
	data, err := json.Marshal(td)
	if err != nil {
		return nil, err
	}
	var sig hexutil.Bytes
	if err := p.call(ctx, "eth_signTypedData_v4", []any{from, string(data)}, &sig); err != nil {
		return nil, err
	}
	return metatx.ToWire(sig)
}

// Events implements the Provider interface.
func (p *BridgeProvider) Events() <-chan Event {
	return p.events
}

// Close implements the Provider interface, it closes the connection.
func (p *BridgeProvider) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		close(p.shutdown)
	}
	<-p.done
	return nil
}
