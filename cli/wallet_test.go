package main

import (
	"math/big"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	clwallet "github.com/ecotrack/eco-go/cli/wallet"
	"github.com/ecotrack/eco-go/internal/fakechain"
	"github.com/ecotrack/eco-go/pkg/config"
	"github.com/ecotrack/eco-go/pkg/dashboard"
	"github.com/ecotrack/eco-go/pkg/rpcclient/actor"
	"github.com/ecotrack/eco-go/pkg/rpcclient/metatransfer"
	"github.com/ecotrack/eco-go/pkg/services/relay"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWalletInit(t *testing.T) {
	e := newExecutor(t, false)
	clwallet.KeystoreScryptN, clwallet.KeystoreScryptP = keystore.LightScryptN, keystore.LightScryptP
	t.Cleanup(func() {
		clwallet.KeystoreScryptN, clwallet.KeystoreScryptP = keystore.StandardScryptN, keystore.StandardScryptP
	})
	path := filepath.Join(t.TempDir(), "wallet.json")

	t.Run("missing path", func(t *testing.T) {
		e.RunWithError(t, "eco-go", "wallet", "init")
	})
	t.Run("passphrase mismatch", func(t *testing.T) {
		e.In.WriteString("pass\r")
		e.In.WriteString("pasS\r")
		e.RunWithError(t, "eco-go", "wallet", "init", "--wallet", path)
	})

	e.In.WriteString("pass\r")
	e.In.WriteString("pass\r")
	e.Run(t, "eco-go", "wallet", "init", "--wallet", path)
	line := e.getNextLine(t)
	require.True(t, common.IsHexAddress(line))
	e.checkEOF(t)

	acc, err := wallet.NewAccountFromKeystoreFile(path, "pass")
	require.NoError(t, err)
	require.Equal(t, line, acc.Address.Hex())

	t.Run("already exists", func(t *testing.T) {
		e.In.WriteString("pass\r")
		e.In.WriteString("pass\r")
		e.RunWithError(t, "eco-go", "wallet", "init", "--wallet", path)
	})
	t.Run("address", func(t *testing.T) {
		e.In.WriteString("pass\r")
		e.Run(t, "eco-go", "wallet", "address", "--config-path", configPath, "--wallet", path)
		e.checkNextLine(t, "^"+acc.Address.Hex()+"$")
		e.checkEOF(t)
	})
	t.Run("wrong password", func(t *testing.T) {
		e.In.WriteString("bad\r")
		e.RunWithError(t, "eco-go", "wallet", "address", "--config-path", configPath, "--wallet", path)
	})
}

func TestWalletAddress(t *testing.T) {
	e := newExecutor(t, false)
	acc, err := wallet.NewAccount()
	require.NoError(t, err)
	cfg := walletConfig(t, acc)

	e.Run(t, "eco-go", "wallet", "address", "--config-path", configPath, "--wallet-config", cfg)
	e.checkNextLine(t, "^"+acc.Address.Hex()+"$")
	e.checkEOF(t)

	t.Run("qr", func(t *testing.T) {
		e.Run(t, "eco-go", "wallet", "address", "--config-path", configPath, "--wallet-config", cfg, "--qr")
		e.checkNextLine(t, "^"+acc.Address.Hex()+"$")
		qr, err := dashboard.AddressQR(acc.Address, fakechain.DefaultChainID)
		require.NoError(t, err)
		require.Equal(t, qr, e.Out.String())
	})
	t.Run("no wallet", func(t *testing.T) {
		e.RunWithError(t, "eco-go", "wallet", "address", "--config-path", configPath)
	})
	t.Run("conflicting flags", func(t *testing.T) {
		e.RunWithError(t, "eco-go", "wallet", "address", "--config-path", configPath,
			"--wallet-config", cfg, "--wallet", "some.json")
	})
	t.Run("extra arguments", func(t *testing.T) {
		e.RunWithError(t, "eco-go", "wallet", "address", "--config-path", configPath,
			"--wallet-config", cfg, "something")
	})
}

func TestWalletSession(t *testing.T) {
	e := newExecutor(t, true)
	e.Chain.Mint(e.Admin.Address, big.NewInt(1_500_000_000_000_000_000))
	cfg := walletConfig(t, e.Admin)

	args := append([]string{"eco-go", "wallet", "session", "--wallet-config", cfg, "--force"}, e.chainArgs()...)
	e.Run(t, args...)
	e.checkNextLine(t, `^Address:\s+`+e.Admin.Address.Hex()+"$")
	e.checkNextLine(t, `^Chain:\s+31337$`)
	e.checkNextLine(t, `^WrongNetwork:\s+false$`)
	e.checkNextLine(t, `^Balance:\s+\d.* ETH$`)
	e.checkNextLine(t, `^TokenBalance:\s+1\.5 ECO$`)
	e.checkNextLine(t, `^Roles:\s+Admin$`)
	e.checkEOF(t)

	t.Run("rejected", func(t *testing.T) {
		e.In.WriteString("n\r")
		e.RunWithError(t, "eco-go", "wallet", "session", "--wallet-config", cfg, "-r", e.RPC.URL, "--config-path", configPath)
	})
	t.Run("approved", func(t *testing.T) {
		e.In.WriteString("y\r")
		e.Run(t, "eco-go", "wallet", "session", "--wallet-config", cfg, "-r", e.RPC.URL, "--config-path", configPath)
		require.Contains(t, e.Out.String(), "Connect account "+e.Admin.Address.Hex())
		require.Regexp(t, `Roles:\s+Admin`, e.Out.String())
	})
	t.Run("no roles", func(t *testing.T) {
		other := e.newAccount(t)
		args := append([]string{"eco-go", "wallet", "session", "--wallet-config", walletConfig(t, other), "--force"}, e.chainArgs()...)
		e.Run(t, args...)
		require.Regexp(t, `Roles:\s+none`, e.Out.String())
	})
	t.Run("switch network", func(t *testing.T) {
		args := append([]string{"eco-go", "wallet", "switch-network", "--wallet-config", cfg, "--force"}, e.chainArgs()...)
		e.Run(t, args...)
		e.checkNextLine(t, `^Wallet is already on EcoTrack Local \(31337\)$`)
		e.checkEOF(t)
	})
	t.Run("no bridge endpoint", func(t *testing.T) {
		args := append([]string{"eco-go", "wallet", "session", "--bridge"}, e.chainArgs()...)
		e.RunWithError(t, append(args, "--config-file", filepath.Join(configPath, "protocol.testnet.yml"))...)
	})
}

func newRelayServer(t *testing.T, e *executor) *httptest.Server {
	relayer := e.newAccount(t)
	act, err := actor.NewTuned(e.Chain, relayer, actor.Options{PollInterval: 10 * time.Millisecond, WaitBlocks: 2})
	require.NoError(t, err)
	srv := relay.New(config.Relay{
		BasicService:        config.BasicService{Enabled: true},
		MaxRequestBodyBytes: config.DefaultMaxRequestBodyBytes,
		ReadTimeout:         time.Second,
	}, e.Chain.Domain(), metatransfer.NewExecutor(act, e.Chain.MetaTransfer()), zap.NewNop(), make(chan error, 1))
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return hs
}

func TestWalletTransfer(t *testing.T) {
	e := newExecutor(t, true)
	user, err := wallet.NewAccount()
	require.NoError(t, err)
	e.Chain.Mint(user.Address, bigTokens(10))
	recipient, err := wallet.NewAccount()
	require.NoError(t, err)
	cfg := walletConfig(t, user)
	rs := newRelayServer(t, e)

	base := append([]string{"eco-go", "wallet", "transfer", "--wallet-config", cfg, "--force", "--relay", rs.URL}, e.chainArgs()...)

	t.Run("missing recipient", func(t *testing.T) {
		e.RunWithError(t, append(base, "--amount", "1")...)
	})
	t.Run("bad recipient", func(t *testing.T) {
		e.RunWithError(t, append(base, "--to", "0x123", "--amount", "1")...)
	})
	t.Run("insufficient balance", func(t *testing.T) {
		e.RunWithError(t, append(base, "--to", recipient.Address.Hex(), "--amount", "11")...)
		require.Equal(t, 0, e.Chain.TokenBalance(recipient.Address).Sign())
	})

	e.Run(t, append(base, "--to", recipient.Address.Hex(), "--amount", "2.5")...)
	line := strings.TrimSpace(e.getNextLine(t))
	require.Regexp(t, "^0x[0-9a-f]{64}$", line)
	e.checkEOF(t)
	require.Equal(t, big.NewInt(2_500_000_000_000_000_000), e.Chain.TokenBalance(recipient.Address))
	require.Equal(t, big.NewInt(7_500_000_000_000_000_000), e.Chain.TokenBalance(user.Address))

	t.Run("query relayed tx", func(t *testing.T) {
		e.Run(t, append([]string{"eco-go", "query", "tx", line}, e.chainArgs()...)...)
		e.checkNextLine(t, `^Hash:\s+`+line)
		e.checkNextLine(t, `^OnChain:\s+true`)
		e.checkNextLine(t, `^Block:\s+\d+`)
		e.checkNextLine(t, `^Success:\s+true`)
		e.checkEOF(t)
	})
}
