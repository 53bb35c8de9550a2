package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ecotrack/eco-go/cli/app"
	"github.com/ecotrack/eco-go/cli/input"
	"github.com/ecotrack/eco-go/internal/fakechain"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

const (
	// testPass is the password of all test keystores.
	testPass = "one"
	// configPath holds privnet configuration matching fakechain defaults.
	configPath = "../config"
)

var tokenAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type executor struct {
	// CLI is a cli application to test.
	CLI *cli.App
	// Chain is an in-memory chain (can be empty).
	Chain *fakechain.Chain
	// RPC is the JSON-RPC server of Chain (can be empty).
	RPC *httptest.Server
	// Admin has the admin role in the genesis block of Chain.
	Admin *wallet.Account
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
	// In contains command input.
	In *bytes.Buffer
}

func newExecutor(t *testing.T, needChain bool) *executor {
	e := &executor{
		CLI: app.New(),
		Out: bytes.NewBuffer(nil),
		Err: bytes.NewBuffer(nil),
		In:  bytes.NewBuffer(nil),
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	if needChain {
		admin, err := wallet.NewAccount()
		require.NoError(t, err)
		e.Admin = admin
		e.Chain = fakechain.New(tokenAddr, admin.Address)
		e.fund(admin)
		srv, err := fakechain.NewServer(e.Chain)
		require.NoError(t, err)
		e.RPC = httptest.NewServer(srv)
	}
	t.Cleanup(func() {
		e.Close(t)
	})
	return e
}

func (e *executor) Close(t *testing.T) {
	input.Terminal = nil
	if e.RPC != nil {
		e.RPC.Close()
	}
}

// newAccount creates an account funded for transactions.
func (e *executor) newAccount(t *testing.T) *wallet.Account {
	acc, err := wallet.NewAccount()
	require.NoError(t, err)
	e.fund(acc)
	return acc
}

func (e *executor) fund(acc *wallet.Account) {
	e.Chain.Fund(acc.Address, new(big.Int).Mul(big.NewInt(fakechain.GasPrice), big.NewInt(1000*fakechain.CallGas)))
}

// walletConfig saves the account into a keystore and returns the path of the
// wallet config file with the keystore password.
func walletConfig(t *testing.T, acc *wallet.Account) string {
	dir := t.TempDir()
	ks := filepath.Join(dir, "wallet.json")
	require.NoError(t, acc.SaveKeystore(ks, testPass, keystore.LightScryptN, keystore.LightScryptP))
	cfg := filepath.Join(dir, "wallet.yml")
	require.NoError(t, os.WriteFile(cfg, []byte(fmt.Sprintf("Path: %s\nPassword: %s\n", ks, testPass)), 0o644))
	return cfg
}

// chainArgs returns flags pointing a command to the test chain.
func (e *executor) chainArgs() []string {
	return []string{"--config-path", configPath, "-r", e.RPC.URL}
}

func (e *executor) getNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (e *executor) checkNextLine(t *testing.T, expected string) {
	line := e.getNextLine(t)
	e.checkLine(t, line, expected)
}

func (e *executor) checkLine(t *testing.T, line, expected string) {
	require.Regexp(t, expected, line)
}

func (e *executor) checkEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.True(t, errors.Is(err, io.EOF))
}

// checkTxSucceeded reads the transaction hash printed by the command and
// checks its receipt.
func (e *executor) checkTxSucceeded(t *testing.T) common.Hash {
	line := strings.TrimSpace(e.getNextLine(t))
	require.Regexp(t, "^0x[0-9a-f]{64}$", line)
	h := common.HexToHash(line)
	rcpt, err := e.Chain.TransactionReceipt(h)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rcpt.Status)
	return h
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// RunWithError runs command and checks that is exits with error.
func (e *executor) RunWithError(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(args...))
	checkExit(t, ch, 1)
}

// Run runs command and checks that there were no errors.
func (e *executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.NoError(t, e.run(args...))
	checkExit(t, ch, 0)
}

func (e *executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	input.Terminal = term.NewTerminal(input.ReadWriter{
		Reader: e.In,
		Writer: io.Discard,
	}, "")
	err := e.CLI.Run(args)
	input.Terminal = nil
	e.In.Reset()
	return err
}

// bigTokens returns n tokens with 18 decimals.
func bigTokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}
