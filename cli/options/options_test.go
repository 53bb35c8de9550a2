package options

import (
	"bytes"
	"flag"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ecotrack/eco-go/pkg/config"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newContext(set *flag.FlagSet) *cli.Context {
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestGetNetwork(t *testing.T) {
	t.Run("privnet", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		require.Equal(t, "privnet", GetNetwork(newContext(set)))
	})

	t.Run("testnet", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Bool("testnet", true, "")
		require.Equal(t, "testnet", GetNetwork(newContext(set)))
	})
}

func TestGetTimeoutContext(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		actualCtx, _ := GetTimeoutContext(newContext(set))
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(DefaultTimeout)))
	})

	t.Run("set", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Duration("timeout", time.Duration(20), "")
		actualCtx, _ := GetTimeoutContext(newContext(set))
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(time.Nanosecond*20)))
	})
}

func TestGetConfigFromContext(t *testing.T) {
	t.Run("config path", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-path", filepath.Join("..", "..", "config"), "")
		set.Bool("testnet", true, "")
		cfg, err := GetConfigFromContext(newContext(set))
		require.NoError(t, err)
		require.NotZero(t, cfg.ProtocolConfiguration.ChainID)
	})

	t.Run("config file", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-file", filepath.Join("..", "..", "config", "protocol.privnet.yml"), "")
		cfg, err := GetConfigFromContext(newContext(set))
		require.NoError(t, err)
		require.Equal(t, uint64(31337), cfg.ProtocolConfiguration.ChainID)
	})

	t.Run("missing", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-path", t.TempDir(), "")
		_, err := GetConfigFromContext(newContext(set))
		require.Error(t, err)
	})
}

func TestGetRPCClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"id":1,"jsonrpc":"2.0","result":"0x7a69"}`))
	}))
	defer srv.Close()

	t.Run("no endpoint", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := newContext(set)
		gctx, _ := GetTimeoutContext(ctx)
		_, ec := GetRPCClient(gctx, ctx, config.RPCClient{})
		require.Equal(t, 1, ec.ExitCode())
	})

	t.Run("configured", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := newContext(set)
		gctx, _ := GetTimeoutContext(ctx)
		c, ec := GetRPCClient(gctx, ctx, config.RPCClient{Endpoint: srv.URL})
		require.Nil(t, ec)
		defer c.Close()
		id, err := c.ChainID()
		require.NoError(t, err)
		require.Equal(t, uint64(31337), id)
	})

	t.Run("flag", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String(RPCEndpointFlag, srv.URL, "")
		ctx := newContext(set)
		gctx, _ := GetTimeoutContext(ctx)
		c, ec := GetRPCClient(gctx, ctx, config.RPCClient{Endpoint: "http://127.0.0.1:1"})
		require.Nil(t, ec)
		defer c.Close()
		_, err := c.ChainID()
		require.NoError(t, err)
	})
}

func TestGetInvoker(t *testing.T) {
	t.Run("latest", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		inv, ec := GetInvoker(nil, newContext(set), nil)
		require.Nil(t, ec)
		require.Nil(t, inv.Height())
	})

	t.Run("historic", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("historic", "42", "")
		inv, ec := GetInvoker(nil, newContext(set), nil)
		require.Nil(t, ec)
		require.Equal(t, big.NewInt(42), inv.Height())
	})

	t.Run("invalid", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("historic", "0xdeadbeef", "")
		_, ec := GetInvoker(nil, newContext(set), nil)
		require.Equal(t, 1, ec.ExitCode())
	})
}

func TestHandleLoggingParams(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		log, lvl, _, err := HandleLoggingParams(false, config.ApplicationConfiguration{})
		require.NoError(t, err)
		require.NotNil(t, log)
		require.Equal(t, "info", lvl.String())
	})

	t.Run("debug overrides", func(t *testing.T) {
		_, lvl, _, err := HandleLoggingParams(true, config.ApplicationConfiguration{LogLevel: "error"})
		require.NoError(t, err)
		require.Equal(t, "debug", lvl.String())
	})

	t.Run("bad level", func(t *testing.T) {
		_, _, _, err := HandleLoggingParams(false, config.ApplicationConfiguration{LogLevel: "loud"})
		require.Error(t, err)
	})

	t.Run("log file", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "logs", "eco.log")
		log, _, closer, err := HandleLoggingParams(false, config.ApplicationConfiguration{LogPath: logPath})
		require.NoError(t, err)
		log.Info("hello")
		_ = log.Sync()
		if closer != nil {
			require.NoError(t, closer())
		}
		require.FileExists(t, logPath)
	})
}

func saveKeystore(t *testing.T, pass string) (*wallet.Account, string) {
	acc, err := wallet.NewAccount()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, acc.SaveKeystore(path, pass, keystore.LightScryptN, keystore.LightScryptP))
	return acc, path
}

func TestGetAccFromContext(t *testing.T) {
	acc, path := saveKeystore(t, "pass")

	t.Run("no wallet", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		_, err := GetAccFromContext(newContext(set), config.Wallet{})
		require.ErrorIs(t, err, errNoWallet)
	})

	t.Run("conflicting flags", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("wallet", path, "")
		set.String("wallet-config", path, "")
		_, err := GetAccFromContext(newContext(set), config.Wallet{})
		require.ErrorIs(t, err, errConflictingWalletFlags)
	})

	t.Run("wallet config", func(t *testing.T) {
		wcPath := filepath.Join(t.TempDir(), "wallet.yml")
		require.NoError(t, os.WriteFile(wcPath, []byte("Path: "+path+"\nPassword: pass\n"), 0600))
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("wallet-config", wcPath, "")
		res, err := GetAccFromContext(newContext(set), config.Wallet{})
		require.NoError(t, err)
		require.Equal(t, acc.Address, res.Address)
	})

	t.Run("configured", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		res, err := GetAccFromContext(newContext(set), config.Wallet{Path: path, Password: "pass"})
		require.NoError(t, err)
		require.Equal(t, acc.Address, res.Address)
	})

	t.Run("wrong password", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		_, err := GetAccFromContext(newContext(set), config.Wallet{Path: path, Password: "wrong"})
		require.Error(t, err)
	})
}

func TestReadWalletConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadWalletConfig(filepath.Join(dir, "nonexistent.yml"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yml")
	require.NoError(t, os.WriteFile(empty, []byte("Password: pass\n"), 0600))
	_, err = ReadWalletConfig(empty)
	require.Error(t, err)

	good := filepath.Join(dir, "good.yml")
	require.NoError(t, os.WriteFile(good, []byte("Path: /tmp/key.json\nPassword: pass\n"), 0600))
	cfg, err := ReadWalletConfig(good)
	require.NoError(t, err)
	require.Equal(t, "/tmp/key.json", cfg.Path)
	require.Equal(t, "pass", cfg.Password)
}

func TestDescribeRequest(t *testing.T) {
	from := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	buf := new(bytes.Buffer)
	DescribeRequest(buf, wallet.ConfirmRequest{
		Kind:    wallet.SignRequest,
		Account: from,
		TypedData: &apitypes.TypedData{
			PrimaryType: "Transfer",
			Domain: apitypes.TypedDataDomain{
				Name:    "EcoToken",
				Version: "1",
				ChainId: math.NewHexOrDecimal256(31337),
			},
			Message: apitypes.TypedDataMessage{
				"to":     "0x0000000000000000000000000000000000000001",
				"amount": "10",
			},
		},
	})
	require.Equal(t, "Sign with "+from.Hex()+"\n"+
		"Domain: EcoToken v1\n"+
		"Type: Transfer\n"+
		"  amount: 10\n"+
		"  to: 0x0000000000000000000000000000000000000001\n", buf.String())

	buf.Reset()
	DescribeRequest(buf, wallet.ConfirmRequest{Kind: wallet.SwitchChainRequest, ChainID: 5})
	require.Equal(t, "Switch to chain 5\n", buf.String())

	buf.Reset()
	other := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	DescribeRequest(buf, wallet.ConfirmRequest{
		Kind:     wallet.ConnectRequest,
		Account:  from,
		Accounts: []common.Address{from, other},
	})
	require.Equal(t, "Connect account "+from.Hex()+"\nConnect account "+other.Hex()+"\n", buf.String())
}

func TestFilteringCore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(NewFilteringCore(core, MinLevel(zapcore.WarnLevel)))
	log.Info("dropped")
	log.Warn("kept")
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "kept", logs.All()[0].Message)

	child := log.With(zap.String("component", "cache"))
	child.Info("dropped too")
	child.Error("kept too")
	require.Equal(t, 2, logs.Len())
	require.Equal(t, "kept too", logs.All()[1].Message)
	require.Equal(t, "cache", logs.All()[1].ContextMap()["component"])
}
