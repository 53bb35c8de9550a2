package eco

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ecotrack/eco-go/cli/options"
	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/dashboard"
	"github.com/ecotrack/eco-go/pkg/encoding/evidence"
	"github.com/ecotrack/eco-go/pkg/rpcclient/actor"
	"github.com/ecotrack/eco-go/pkg/rpcclient/ecotoken"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrCancelled is returned when the user doesn't confirm the operation.
var ErrCancelled = errors.New("cancelled")

// ConfirmFunc is called with the description of every transaction before
// it's sent, the operation is cancelled if it returns an error.
type ConfirmFunc func(what string) error

// Writer sends EcoToken transactions on behalf of the account and waits for
// them. The affected cache slice is reread after every successful write.
type Writer struct {
	env     *options.Env
	tok     *ecotoken.Contract
	act     *actor.Actor
	confirm ConfirmFunc
}

// NewWriter creates a Writer, confirm can be nil to send transactions
// without asking.
func NewWriter(env *options.Env, acc *wallet.Account, confirm ConfirmFunc) (*Writer, error) {
	tok, act, err := env.ContractFor(acc)
	if err != nil {
		return nil, err
	}
	if confirm == nil {
		confirm = func(string) error { return nil }
	}
	return &Writer{env: env, tok: tok, act: act, confirm: confirm}, nil
}

// Sender returns the account transactions are sent from.
func (w *Writer) Sender() common.Address {
	return w.act.Sender()
}

func (w *Writer) send(what string, f func() (common.Hash, error)) (common.Hash, error) {
	if err := w.confirm(what); err != nil {
		return common.Hash{}, err
	}
	h, err := f()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", noticeText(err), err)
	}
	w.env.Log.Debug("transaction sent", zap.Stringer("hash", h), zap.String("operation", what))
	if _, err := w.act.Wait(h, nil); err != nil {
		return h, fmt.Errorf("transaction %s: %w", h.Hex(), err)
	}
	return h, nil
}

func noticeText(err error) string {
	n := dashboard.NoticeFor(err)
	if n.Text == "" {
		return "failed to send transaction"
	}
	return strings.TrimSuffix(n.Text, ": "+err.Error())
}

// Submit records a new eco action of the sender.
func (w *Writer) Submit(desc string, amount *big.Int, evidenceHash string) (common.Hash, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return common.Hash{}, errors.New("empty description")
	}
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, errors.New("amount must be positive")
	}
	if !evidence.IsValid(evidenceHash) {
		return common.Hash{}, fmt.Errorf("%w: %q", evidence.ErrInvalidHash, evidenceHash)
	}
	what := fmt.Sprintf("Submit %q reducing %s %s", desc,
		dashboard.FormatAmount(amount, w.env.Decimals()), w.env.Symbol())
	h, err := w.send(what, func() (common.Hash, error) {
		return w.tok.SubmitEcoAction(desc, amount, evidenceHash)
	})
	if err != nil {
		return h, err
	}
	if _, err := w.env.Cache.LoadActions(w.Sender()); err != nil {
		w.env.Log.Warn("failed to refresh actions", zap.Error(err))
	}
	return h, nil
}

// Verify marks the action of the manufacturer as verified.
func (w *Writer) Verify(m common.Address, id uint64) (common.Hash, error) {
	a, err := w.env.Token.ManufacturerAction(m, id)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get action %d of %s: %w", id, m.Hex(), err)
	}
	if a.Verified {
		return common.Hash{}, fmt.Errorf("action %d of %s is already verified", id, m.Hex())
	}
	what := fmt.Sprintf("Verify action %d of %s (%s)", id, m.Hex(), a.Description)
	h, err := w.send(what, func() (common.Hash, error) {
		return w.tok.VerifyAction(m, id)
	})
	if err != nil {
		return h, err
	}
	if _, err := w.env.Cache.LoadActions(m); err != nil {
		w.env.Log.Warn("failed to refresh actions", zap.Error(err))
	}
	return h, nil
}

// ChangeRole grants the role to the account or revokes it. Manufacturer and
// auditor roles are granted with the dedicated contract methods.
func (w *Writer) ChangeRole(acc common.Address, r roles.Role, grant bool) (common.Hash, error) {
	hashes, err := w.env.Cache.RoleHashes()
	if err != nil {
		return common.Hash{}, err
	}
	id, ok := hashes.Hash(r)
	if !ok {
		return common.Hash{}, fmt.Errorf("no identifier for %s role", r)
	}
	current, err := w.env.Cache.RefreshRoles(acc)
	if err != nil {
		return common.Hash{}, err
	}
	if current.Has(r) == grant {
		state := "doesn't have"
		if grant {
			state = "already has"
		}
		return common.Hash{}, fmt.Errorf("%s %s %s role", acc.Hex(), state, r)
	}
	var (
		what string
		call func() (common.Hash, error)
	)
	switch {
	case !grant:
		what = fmt.Sprintf("Revoke %s role from %s", r, acc.Hex())
		call = func() (common.Hash, error) { return w.tok.RevokeRole(id, acc) }
	case r == roles.Manufacturer:
		what = fmt.Sprintf("Grant %s role to %s", r, acc.Hex())
		call = func() (common.Hash, error) { return w.tok.AddManufacturer(acc) }
	case r == roles.Auditor:
		what = fmt.Sprintf("Grant %s role to %s", r, acc.Hex())
		call = func() (common.Hash, error) { return w.tok.AddAuditor(acc) }
	default:
		what = fmt.Sprintf("Grant %s role to %s", r, acc.Hex())
		call = func() (common.Hash, error) { return w.tok.GrantRole(id, acc) }
	}
	h, err := w.send(what, call)
	if err != nil {
		return h, err
	}
	if _, err := w.env.Cache.RefreshRoles(acc); err != nil {
		w.env.Log.Warn("failed to refresh roles", zap.Error(err))
	}
	return h, nil
}
