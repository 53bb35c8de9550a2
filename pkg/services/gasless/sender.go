/*
Package gasless implements the client side of gasless token transfers. A
transfer attempt goes through Idle, Built, Signed and Relayed states ending
up either Confirmed (the relay has accepted it and returned a transaction
hash) or Failed. Nothing is retried automatically.
*/
package gasless

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ecotrack/eco-go/pkg/cache"
	"github.com/ecotrack/eco-go/pkg/encoding/address"
	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

type (
	// BalanceReader returns token balances (like ecotoken.Reader).
	BalanceReader interface {
		BalanceOf(account common.Address) (*big.Int, error)
	}
	// NonceReader returns meta-transfer nonces (like metatransfer.Reader).
	NonceReader interface {
		Nonces(owner common.Address) (*big.Int, error)
	}
	// Signer signs typed data on behalf of the account (like
	// wallet.Provider).
	Signer interface {
		SignTypedData(ctx context.Context, from common.Address, td apitypes.TypedData) ([]byte, error)
	}
	// Relayer submits signed requests (like RelayClient).
	Relayer interface {
		Relay(ctx context.Context, req metatx.RelayRequest) (common.Hash, error)
	}
)

// Config is the Sender configuration.
type Config struct {
	// Domain is the signing domain of the meta-transfer contract.
	Domain metatx.Domain
	// Validity is the request validity window, metatx.DefaultValidity is
	// used if zero.
	Validity time.Duration
	// Now returns the current time, time.Now if nil.
	Now func() time.Time
}

// Sender creates, signs and relays transfer requests.
type Sender struct {
	cfg    Config
	token  BalanceReader
	nonces NonceReader
	signer Signer
	relay  Relayer
	log    *zap.Logger
}

// NewSender creates a Sender. signer can be nil if there is no wallet.
func NewSender(cfg Config, token BalanceReader, nonces NonceReader, signer Signer, relay Relayer, log *zap.Logger) *Sender {
	if cfg.Validity <= 0 {
		cfg.Validity = metatx.DefaultValidity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sender{
		cfg:    cfg,
		token:  token,
		nonces: nonces,
		signer: signer,
		relay:  relay,
		log:    log,
	}
}

// Build validates the recipient and the amount and creates a request with a
// fresh nonce. Input errors are detected before any chain request and are
// wrapped into ErrInvalidInput. The returned attempt is either Built or
// Failed (and then it's returned along with the error).
func (s *Sender) Build(from common.Address, to string, amount *big.Int) (*Attempt, error) {
	a := &Attempt{State: Idle}
	recipient, err := address.StringToAddress(to)
	if err != nil {
		return a, a.fail(InvalidInput, fmt.Errorf("%w: recipient: %v", ErrInvalidInput, err))
	}
	if recipient == (common.Address{}) {
		return a, a.fail(InvalidInput, fmt.Errorf("%w: zero recipient", ErrInvalidInput))
	}
	if amount == nil || amount.Sign() <= 0 {
		return a, a.fail(InvalidInput, fmt.Errorf("%w: amount must be positive", ErrInvalidInput))
	}
	if err := metatx.CheckUint256(amount); err != nil {
		return a, a.fail(InvalidInput, fmt.Errorf("%w: amount: %v", ErrInvalidInput, err))
	}

	balance, err := s.token.BalanceOf(from)
	if err != nil {
		return a, a.fail(ChainReadFailed, fmt.Errorf("%w: balance: %w", cache.ErrChainRead, err))
	}
	if amount.Cmp(balance) > 0 {
		return a, a.fail(InvalidInput, fmt.Errorf("%w: amount %s exceeds balance %s", ErrInvalidInput, amount, balance))
	}

	now := s.cfg.Now()
	nonce, err := s.nonces.Nonces(from)
	if err != nil {
		nonce = big.NewInt(now.Unix())
		a.Degraded = true
		s.log.Warn("failed to read nonce, using current time instead",
			zap.Stringer("from", from),
			zap.Stringer("nonce", nonce),
			zap.Error(err))
	}
	a.Request = metatx.NewTransferRequest(from, recipient, amount, nonce, now, s.cfg.Validity)
	a.State = Built
	return a, nil
}

// Sign obtains the wallet signature for the built request.
func (s *Sender) Sign(ctx context.Context, a *Attempt) error {
	if err := a.expect(Built); err != nil {
		return err
	}
	if s.signer == nil {
		return a.fail(WalletUnavailable, wallet.ErrWalletUnavailable)
	}
	sig, err := s.signer.SignTypedData(ctx, a.Request.From, s.cfg.Domain.TypedData(a.Request))
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrUserRejected):
			return a.fail(UserRejected, err)
		case errors.Is(err, wallet.ErrWalletUnavailable), errors.Is(err, wallet.ErrDisconnected):
			return a.fail(WalletUnavailable, err)
		default:
			return a.fail(SigningFailed, err)
		}
	}
	sig, err = metatx.ToWire(sig)
	if err != nil {
		return a.fail(SigningFailed, err)
	}
	a.Signature = sig
	a.State = Signed
	return nil
}

// Relay submits the signed request to the relay. The attempt is Confirmed
// when the relay returns a transaction hash, which doesn't mean the
// transaction is included into a block.
func (s *Sender) Relay(ctx context.Context, a *Attempt) error {
	if err := a.expect(Signed); err != nil {
		return err
	}
	a.State = Relayed
	h, err := s.relay.Relay(ctx, metatx.NewRelayRequest(a.Request, a.Signature))
	if err != nil {
		if _, ok := IsRelayError(err); ok {
			return a.fail(RelayRejected, err)
		}
		if !errors.Is(err, ErrRelayUnreachable) {
			err = fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
		}
		return a.fail(RelayUnreachable, err)
	}
	a.TxHash = h
	a.State = Confirmed
	s.log.Info("transfer accepted by relay",
		zap.Stringer("from", a.Request.From),
		zap.Stringer("to", a.Request.To),
		zap.Stringer("amount", a.Request.Amount),
		zap.Stringer("tx", h))
	return nil
}

// Send performs the whole transfer: Build, Sign and Relay. The attempt is
// always returned, failed attempts are returned along with the error.
func (s *Sender) Send(ctx context.Context, from common.Address, to string, amount *big.Int) (*Attempt, error) {
	a, err := s.Build(from, to, amount)
	if err != nil {
		return a, err
	}
	if err := s.Sign(ctx, a); err != nil {
		return a, err
	}
	return a, s.Relay(ctx, a)
}
