// Package multisig implements the M-of-N multisig wallet state
// machine: createMultisig, submitTx, confirmTx, getWallet.
package multisig

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kashguard/msig-auth/internal/authenticator"
	"github.com/kashguard/msig-auth/internal/authfail"
	"github.com/kashguard/msig-auth/internal/authz"
	"github.com/kashguard/msig-auth/internal/envelope"
	"github.com/kashguard/msig-auth/internal/metrics"
	"github.com/kashguard/msig-auth/internal/store"
)

// Wallet implements the four wallet operations. Every mutating method
// first runs the envelope through the Authenticator and Authorization
// gate before touching wallet state.
type Wallet struct {
	store   store.MultisigStore
	events  store.EventSink
	authn   *authenticator.Service
	gate    *authz.Gate
	replay  store.ReplayStore
	metrics *metrics.Metrics
}

func New(st store.MultisigStore, events store.EventSink, authn *authenticator.Service, gate *authz.Gate, replay store.ReplayStore, m *metrics.Metrics) *Wallet {
	return &Wallet{store: st, events: events, authn: authn, gate: gate, replay: replay, metrics: m}
}

// CreateMultisigRequest is the createMultisig envelope payload.
type CreateMultisigRequest struct {
	WalletID  string   `json:"walletId"`
	Owners    []string `json:"owners"`
	Threshold int      `json:"threshold"`
}

// CreateMultisig validates threshold/owner invariants, persists a new
// WalletState and emits MultisigCreated.
func (w *Wallet) CreateMultisig(ctx context.Context, raw []byte, req CreateMultisigRequest) (string, error) {
	if _, err := w.authenticate(ctx, raw, authz.OperationPolicy{MinSignatures: 1, Type: authz.SUBMIT}); err != nil {
		return "", err
	}

	if err := w.recordOp(ctx, "createMultisig", func() error {
		if req.Threshold <= 0 {
			return authfail.ValidationFailed("threshold must be positive")
		}
		if len(req.Owners) < req.Threshold {
			return authfail.ValidationFailed("owners must be at least threshold")
		}
		if _, ok, err := w.store.GetWallet(ctx, req.WalletID); err != nil {
			return err
		} else if ok {
			return authfail.ValidationFailed("wallet already exists: " + req.WalletID)
		}

		state := &store.WalletState{
			WalletID:   req.WalletID,
			Owners:     append([]string(nil), req.Owners...),
			Threshold:  req.Threshold,
			Nonce:      0,
			PendingTxs: map[int64]*store.PendingTx{},
		}
		if err := w.store.PutWallet(ctx, state); err != nil {
			return err
		}
		return w.emit("MultisigCreated", map[string]any{
			"walletId":  req.WalletID,
			"owners":    req.Owners,
			"threshold": req.Threshold,
		})
	}); err != nil {
		return "", err
	}

	log.Debug().Str("wallet_id", req.WalletID).Int("threshold", req.Threshold).Msg("createMultisig")
	return req.WalletID, nil
}

// SubmitTxRequest is the submitTx envelope payload.
type SubmitTxRequest struct {
	WalletID string `json:"walletId"`
	To       string `json:"to"`
	Data     string `json:"data"`
}

// SubmitTx records a new pending transaction signed by its submitter,
// auto-executing it immediately when the wallet's threshold is 1.
func (w *Wallet) SubmitTx(ctx context.Context, raw []byte, req SubmitTxRequest) (int64, error) {
	auth, err := w.authenticate(ctx, raw, authz.OperationPolicy{MinSignatures: 1, Type: authz.SUBMIT})
	if err != nil {
		return 0, err
	}
	submitter := auth.FirstUserView.EthAddress
	if submitter == "" {
		submitter = auth.FirstUserView.TonAddress
	}

	var nonce int64
	if err := w.recordOp(ctx, "submitTx", func() error {
		state, ok, err := w.store.GetWallet(ctx, req.WalletID)
		if err != nil {
			return err
		}
		if !ok {
			return authfail.NotFoundWallet(req.WalletID)
		}
		if !contains(state.Owners, submitter) {
			return authfail.ValidationFailed(fmt.Sprintf("submitter %s is not an owner of wallet %s", submitter, req.WalletID))
		}

		nonce = state.Nonce
		state.PendingTxs[nonce] = &store.PendingTx{To: req.To, Data: req.Data, Confirmations: []string{submitter}}
		state.Nonce++

		if err := w.emit("TxSubmitted", map[string]any{
			"walletId": req.WalletID,
			"nonce":    nonce,
			"to":       req.To,
		}); err != nil {
			return err
		}

		if state.Threshold <= 1 {
			delete(state.PendingTxs, nonce)
			if err := w.emit("TxExecuted", map[string]any{"walletId": req.WalletID, "nonce": nonce}); err != nil {
				return err
			}
		}

		return w.store.PutWallet(ctx, state)
	}); err != nil {
		return 0, err
	}

	return nonce, nil
}

// ConfirmTxRequest is the confirmTx envelope payload.
type ConfirmTxRequest struct {
	WalletID string `json:"walletId"`
	Nonce    int64  `json:"nonce"`
}

// ConfirmTx appends the caller's confirmation to a pending transaction,
// executing it once confirmations reach the wallet's threshold. It
// returns whether execution happened on this call.
func (w *Wallet) ConfirmTx(ctx context.Context, raw []byte, req ConfirmTxRequest) (bool, error) {
	auth, err := w.authenticate(ctx, raw, authz.OperationPolicy{MinSignatures: 1, Type: authz.SUBMIT})
	if err != nil {
		return false, err
	}
	confirmer := auth.FirstUserView.EthAddress
	if confirmer == "" {
		confirmer = auth.FirstUserView.TonAddress
	}

	var executed bool
	if err := w.recordOp(ctx, "confirmTx", func() error {
		state, ok, err := w.store.GetWallet(ctx, req.WalletID)
		if err != nil {
			return err
		}
		if !ok {
			return authfail.NotFoundWallet(req.WalletID)
		}
		if !contains(state.Owners, confirmer) {
			return authfail.ValidationFailed(fmt.Sprintf("Confirmer %s is not an owner of wallet %s", confirmer, req.WalletID))
		}
		tx, ok := state.PendingTxs[req.Nonce]
		if !ok {
			return authfail.NotFoundTx(req.WalletID, req.Nonce)
		}
		if contains(tx.Confirmations, confirmer) {
			return authfail.ValidationFailed(fmt.Sprintf("%s already confirmed", confirmer))
		}

		tx.Confirmations = append(tx.Confirmations, confirmer)
		if len(tx.Confirmations) >= state.Threshold {
			delete(state.PendingTxs, req.Nonce)
			executed = true
			if err := w.emit("TxExecuted", map[string]any{"walletId": req.WalletID, "nonce": req.Nonce}); err != nil {
				return err
			}
		}

		return w.store.PutWallet(ctx, state)
	}); err != nil {
		return false, err
	}

	return executed, nil
}

// GetWallet returns the current wallet state. No signer check beyond
// the envelope's own authentication.
func (w *Wallet) GetWallet(ctx context.Context, raw []byte, walletID string) (*store.WalletState, error) {
	if _, err := w.authenticate(ctx, raw, authz.OperationPolicy{MinSignatures: 1, Type: authz.EVALUATE}); err != nil {
		return nil, err
	}
	state, ok, err := w.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, authfail.NotFoundWallet(walletID)
	}
	return state, nil
}

func (w *Wallet) authenticate(ctx context.Context, raw []byte, policy authz.OperationPolicy) (*authenticator.AuthResult, error) {
	auth, err := w.authn.Authenticate(ctx, raw, policy.MinSignatures)
	if err != nil {
		return nil, err
	}
	if err := w.gate.Check(auth.Users, policy); err != nil {
		return nil, err
	}
	if policy.Type == authz.SUBMIT {
		if err := w.consumeReplay(ctx, raw); err != nil {
			return nil, err
		}
	}
	return auth, nil
}

// consumeReplay enforces spec §5's anti-replay discipline: a SUBMIT-class
// envelope's uniqueKey must be consumed exactly once before the operation
// is allowed to mutate wallet state.
func (w *Wallet) consumeReplay(ctx context.Context, raw []byte) error {
	env, err := envelope.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "multisig: invalid envelope")
	}
	if env.UniqueKey == "" {
		return authfail.ValidationFailed("uniqueKey is required for a SUBMIT-class operation")
	}
	fresh, err := w.replay.Consume(ctx, env.UniqueKey)
	if err != nil {
		return errors.Wrap(err, "multisig: replay store")
	}
	if !fresh {
		return authfail.ValidationFailed("uniqueKey has already been consumed")
	}
	return nil
}

func (w *Wallet) recordOp(ctx context.Context, op string, fn func() error) error {
	err := fn()
	result := "ok"
	if err != nil {
		result = "error"
	}
	if w.metrics != nil {
		w.metrics.ObserveWalletOp(op, result)
	}
	log.Debug().Str("op", op).Str("result", result).Msg("wallet operation")
	return err
}

func (w *Wallet) emit(name string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.events.SetEvent(name, data)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
