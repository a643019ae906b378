package cmd

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/distributor"
	"github.com/ardanlabs/moon/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/moon/foundation/blockchain/wallet"
	"github.com/ardanlabs/moon/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	url         string
	distHost    string
	dbPath      string
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <recipient> <amount>",
	Short: "Send value to an account",
	Args:  cobra.ExactArgs(2),
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().StringVarP(&distHost, "distributor", "d", "localhost:38333", "Host of the chain distributor.")
	sendCmd.Flags().StringVar(&dbPath, "db", "", "Read the chain from this chain file instead of the distributor.")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "Time allowed to fetch the chain and submit.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	to, err := resolve(args[0])
	if err != nil {
		return err
	}

	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing amount: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	blocks, err := loadChain(ctx)
	if err != nil {
		return err
	}

	client := http.Client{Timeout: sendTimeout}
	return send(cmd.OutOrStdout(), &client, url, blocks, privateKey, to, amount)
}

// send builds and signs the spend from the chain and submits it to the node.
// Insufficient funds is reported to the user and nothing is submitted.
func send(w io.Writer, client *http.Client, url string, blocks []database.Block, privateKey *ecdsa.PrivateKey, to database.AccountID, amount uint64) error {
	from := database.PublicKeyToAccountID(privateKey.PublicKey)

	tx, err := wallet.BuildSpend(blocks, from, privateKey, to, amount)
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			fmt.Fprintln(w, "insufficient funds")
			return nil
		}
		return err
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	resp, err := client.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("node rejected transaction: status %d: %s", resp.StatusCode, er.Error)
	}

	fmt.Fprintf(w, "sent %d to %s: tx[%s]\n", amount, to, tx.Hash())
	return nil
}

// resolve accepts a key name from the account path or an account.
func resolve(recipient string) (database.AccountID, error) {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		return database.ToAccountID(recipient)
	}

	return ns.Resolve(recipient)
}

// loadChain reads the chain from the chain file when one is specified,
// otherwise it is fetched from the distributor.
func loadChain(ctx context.Context) ([]database.Block, error) {
	if dbPath == "" {
		return distributor.Fetch(ctx, distHost)
	}

	storage, err := disk.New(dbPath)
	if err != nil {
		return nil, err
	}
	defer storage.Close()

	return storage.Load()
}
