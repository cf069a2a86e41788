// Command msigctl is a local demo CLI that wires an in-memory store
// and walks the multisig wallet happy path end-to-end. It is not a
// production RPC surface and opens no network listener.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kashguard/msig-auth/internal/multisig"
	"github.com/kashguard/msig-auth/internal/wiring"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("msigctl failed")
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "msigctl",
		Short: "Exercise the multisig wallet state machine against an in-memory store",
	}
	cmd.AddCommand(newDemoCmd())
	return cmd
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk the wallet happy path (create -> submit -> confirm) with two generated signers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context())
		},
	}
}

func runDemo(ctx context.Context) error {
	app, err := wiring.InjectApp()
	if err != nil {
		return err
	}

	a1, err := newDemoSigner("a1")
	if err != nil {
		return err
	}
	a2, err := newDemoSigner("a2")
	if err != nil {
		return err
	}

	fmt.Printf("owner a1: %s\nowner a2: %s\n\n", a1.address, a2.address)

	createEnv, err := a1.envelope(map[string]any{
		"walletId":  "W",
		"owners":    []string{a1.address, a2.address},
		"threshold": 2,
		"uniqueKey": "demo-create",
	})
	if err != nil {
		return err
	}
	walletID, err := app.Wallet.CreateMultisig(ctx, createEnv, multisig.CreateMultisigRequest{
		WalletID: "W", Owners: []string{a1.address, a2.address}, Threshold: 2,
	})
	if err != nil {
		return err
	}
	fmt.Printf("createMultisig -> %s\n", walletID)

	submitEnv, err := a1.envelope(map[string]any{
		"walletId":  "W",
		"to":        "R",
		"data":      "D",
		"uniqueKey": "demo-submit",
	})
	if err != nil {
		return err
	}
	nonce, err := app.Wallet.SubmitTx(ctx, submitEnv, multisig.SubmitTxRequest{WalletID: "W", To: "R", Data: "D"})
	if err != nil {
		return err
	}
	fmt.Printf("submitTx -> nonce=%d\n", nonce)

	confirmEnv, err := a2.envelope(map[string]any{
		"walletId":  "W",
		"nonce":     nonce,
		"uniqueKey": "demo-confirm",
	})
	if err != nil {
		return err
	}
	executed, err := app.Wallet.ConfirmTx(ctx, confirmEnv, multisig.ConfirmTxRequest{WalletID: "W", Nonce: nonce})
	if err != nil {
		return err
	}
	fmt.Printf("confirmTx -> executed=%v\n", executed)

	state, _, err := app.Store.GetWallet(ctx, "W")
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(state, "", "  ")
	fmt.Println(string(out))

	return nil
}

func init() {
	if os.Getenv("ALLOW_NON_REGISTERED_USERS") == "" {
		os.Setenv("ALLOW_NON_REGISTERED_USERS", "true")
	}
}
