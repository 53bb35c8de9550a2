package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeBridge is a wallet on the other side of a websocket bridge.
type fakeBridge struct {
	t        *testing.T
	acc      *Account
	chainID  uint64
	rejected sync.Map
	conns    chan *websocket.Conn
}

func (b *fakeBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.conns <- ws
	for {
		var req bridgeRequest
		var raw struct {
			Params []json.RawMessage `json:"params"`
		}
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		require.NoError(b.t, json.Unmarshal(data, &req))
		require.NoError(b.t, json.Unmarshal(data, &raw))
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if _, ok := b.rejected.Load(req.Method); ok {
			resp["error"] = RPCError{Code: CodeUserRejected, Message: "User rejected the request."}
		} else {
			switch req.Method {
			case "eth_requestAccounts", "eth_accounts":
				resp["result"] = []common.Address{b.acc.Address}
			case "eth_chainId":
				resp["result"] = hexutil.Uint64(b.chainID)
			case "wallet_switchEthereumChain":
				var p switchChainParam
				require.NoError(b.t, json.Unmarshal(raw.Params[0], &p))
				if uint64(p.ChainID) != b.chainID {
					resp["error"] = RPCError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
				} else {
					resp["result"] = nil
				}
			case "wallet_addEthereumChain":
				var p addChainParam
				require.NoError(b.t, json.Unmarshal(raw.Params[0], &p))
				b.chainID = uint64(p.ChainID)
				resp["result"] = nil
			case "eth_signTypedData_v4":
				var s string
				require.NoError(b.t, json.Unmarshal(raw.Params[1], &s))
				var td apitypes.TypedData
				require.NoError(b.t, json.Unmarshal([]byte(s), &td))
				sig, err := b.acc.SignTypedData(td)
				require.NoError(b.t, err)
				sig[64] -= 27 // Some wallets return 0/1.
				resp["result"] = hexutil.Bytes(sig)
			default:
				resp["error"] = RPCError{Code: CodeUnsupportedMethod, Message: "unsupported"}
			}
		}
		if err := ws.WriteJSON(resp); err != nil {
			return
		}
	}
}

func newTestBridge(t *testing.T) (*BridgeProvider, *fakeBridge) {
	acc, err := NewAccountFromHex(testKeyHex)
	require.NoError(t, err)
	fb := &fakeBridge{t: t, acc: acc, chainID: 31337, conns: make(chan *websocket.Conn, 1)}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	p, err := NewBridgeProvider(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), BridgeOptions{DialTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, fb
}

func TestBridgeUnavailable(t *testing.T) {
	_, err := NewBridgeProvider(context.Background(), "ws://127.0.0.1:1/ws", BridgeOptions{DialTimeout: time.Second})
	require.ErrorIs(t, err, ErrWalletUnavailable)
}

func TestBridgeRequests(t *testing.T) {
	ctx := context.Background()
	p, fb := newTestBridge(t)

	accs, err := p.RequestAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []common.Address{fb.acc.Address}, accs)

	chain, err := p.ChainID(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 31337, chain)

	require.ErrorIs(t, p.SwitchChain(ctx, 1), ErrUnrecognizedChain)
	require.NoError(t, p.AddChain(ctx, ChainParams{ChainID: 1, ChainName: "Ethereum", RPCURLs: []string{"http://localhost:8545"}}))
	require.NoError(t, p.SwitchChain(ctx, 1))

	d := metatx.Domain{Name: "EcoToken", Version: "1", ChainID: 1, VerifyingContract: common.Address{1}}
	r := metatx.TransferRequest{From: fb.acc.Address, To: common.Address{2}, Amount: big.NewInt(10), Nonce: big.NewInt(1), Deadline: 1000}
	sig, err := p.SignTypedData(ctx, fb.acc.Address, d.TypedData(r))
	require.NoError(t, err)
	require.True(t, sig[64] == 27 || sig[64] == 28)
	require.NoError(t, d.Verify(r, sig))

	fb.rejected.Store("eth_signTypedData_v4", true)
	_, err = p.SignTypedData(ctx, fb.acc.Address, d.TypedData(r))
	require.ErrorIs(t, err, ErrUserRejected)
}

func TestBridgeEvents(t *testing.T) {
	p, fb := newTestBridge(t)
	ws := <-fb.conns

	other := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"accountsChanged","params":[["`+other.Hex()+`"]]}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"chainChanged","params":["0x1"]}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"accountsChanged","params":[[]]}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"disconnect","params":[]}`)))

	require.Equal(t, Event{Type: AccountsChanged, Accounts: []common.Address{other}}, <-p.Events())
	require.Equal(t, Event{Type: ChainChanged, ChainID: 1}, <-p.Events())
	require.Equal(t, Event{Type: AccountsChanged, Accounts: []common.Address{}}, <-p.Events())
	require.Equal(t, Event{Type: Disconnected}, <-p.Events())
	_, ok := <-p.Events()
	require.False(t, ok)

	_, err := p.ChainID(context.Background())
	require.ErrorIs(t, err, ErrDisconnected)
}
