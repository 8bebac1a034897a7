// Package chainrpc implements the chain-RPC fallback client from §4.4 step
// 3 and §6: getSignatureStatuses, getParsedTransaction, getTokenAccountsByOwner
// and getTokenAccountBalance, each wrapped with a per-call timeout and
// bounded exponential-backoff retries. Grounded on the teacher's
// backend.Backend client shape (Connect/Close/IsConnected plus read-only
// lookups) and on the pack's Solana-domain files
// (Jonaed13-congenial-octo-lamp, RovshanMuradov-solana-bot) for the
// gagliardetto/solana-go/rpc call surface.
package chainrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// ErrTransactionNotFound is returned when getParsedTransaction comes back
// empty after all retries — a permanent-looking miss the worker should
// still treat as a retryable queue failure per §7 ("transient external").
var ErrTransactionNotFound = errors.New("chainrpc: transaction not found")

// Config configures the fallback client's per-call timeouts and retry
// policy (§4.4 step 3, §6).
type Config struct {
	StatusTimeout    time.Duration // default 10s
	FullTxTimeout    time.Duration // default 15s
	MaxRetries       int           // default 3
	RetryInitialWait time.Duration // default 1s
}

func DefaultConfig() Config {
	return Config{
		StatusTimeout:    10 * time.Second,
		FullTxTimeout:    15 * time.Second,
		MaxRetries:       3,
		RetryInitialWait: 1 * time.Second,
	}
}

// Client wraps a gagliardetto/solana-go rpc.Client with the timeout and
// retry behavior spec §4.4/§5 requires.
type Client struct {
	rpc *rpc.Client
	cfg Config
	log *logging.Logger
}

// New builds a Client against endpoint.
func New(endpoint string, cfg Config) *Client {
	d := DefaultConfig()
	if cfg.StatusTimeout == 0 {
		cfg.StatusTimeout = d.StatusTimeout
	}
	if cfg.FullTxTimeout == 0 {
		cfg.FullTxTimeout = d.FullTxTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	if cfg.RetryInitialWait == 0 {
		cfg.RetryInitialWait = d.RetryInitialWait
	}
	return &Client{
		rpc: rpc.New(endpoint),
		cfg: cfg,
		log: logging.GetDefault().Component("chainrpc"),
	}
}

// SignatureConfirmed calls getSignatureStatuses with a 10s timeout and
// bounded retries (§4.4 step 3), reporting whether the signature has
// finalized without an on-chain error.
func (c *Client) SignatureConfirmed(ctx context.Context, signature string) (bool, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return false, fmt.Errorf("parse signature: %w", err)
	}

	var confirmed bool
	err = c.withRetry(ctx, c.cfg.StatusTimeout, "getSignatureStatuses", func(callCtx context.Context) error {
		out, err := c.rpc.GetSignatureStatuses(callCtx, true, sig)
		if err != nil {
			return err
		}
		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			confirmed = false
			return nil
		}
		status := out.Value[0]
		confirmed = status.Err == nil && status.ConfirmationStatus == rpc.ConfirmationStatusFinalized
		return nil
	})
	return confirmed, err
}

// FetchTransaction implements the §4.4 step 3 RPC-fallback re-fetch: a
// getParsedTransaction(version 0) call with a 15s timeout and bounded
// retries, converted into the classifier's RawTxNotification shape. This
// satisfies the worker.RawTxFetcher interface.
func (c *Client) FetchTransaction(ctx context.Context, signature string) (*model.RawTxNotification, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}

	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingJSONParsed,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	var result *rpc.GetTransactionResult
	err = c.withRetry(ctx, c.cfg.FullTxTimeout, "getParsedTransaction", func(callCtx context.Context) error {
		out, err := c.rpc.GetTransaction(callCtx, sig, opts)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrTransactionNotFound
	}

	return convertParsedTransaction(signature, result), nil
}

// TokenAccountsByOwner calls getTokenAccountsByOwner for the given owner
// and mint, per §6.
func (c *Client) TokenAccountsByOwner(ctx context.Context, owner, mint string) ([]rpc.TokenAccount, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("parse mint: %w", err)
	}

	var accounts []rpc.TokenAccount
	err = c.withRetry(ctx, c.cfg.StatusTimeout, "getTokenAccountsByOwner", func(callCtx context.Context) error {
		out, err := c.rpc.GetTokenAccountsByOwner(callCtx, ownerKey, &rpc.GetTokenAccountsConfig{Mint: &mintKey}, nil)
		if err != nil {
			return err
		}
		if out != nil {
			accounts = out.Value
		}
		return nil
	})
	return accounts, err
}

// TokenAccountBalance calls getTokenAccountBalance for a specific token
// account, per §6.
func (c *Client) TokenAccountBalance(ctx context.Context, tokenAccount string) (*rpc.UiTokenAmount, error) {
	account, err := solana.PublicKeyFromBase58(tokenAccount)
	if err != nil {
		return nil, fmt.Errorf("parse token account: %w", err)
	}

	var balance *rpc.UiTokenAmount
	err = c.withRetry(ctx, c.cfg.StatusTimeout, "getTokenAccountBalance", func(callCtx context.Context) error {
		out, err := c.rpc.GetTokenAccountBalance(callCtx, account, rpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		if out != nil {
			balance = out.Value
		}
		return nil
	})
	return balance, err
}

// withRetry runs fn under a per-call timeout, retrying up to cfg.MaxRetries
// times with exponential backoff on failure, per §4.4 step 3 and §5's
// cancellation/timeout policy.
func (c *Client) withRetry(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	wait := c.cfg.RetryInitialWait
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == c.cfg.MaxRetries {
			break
		}
		c.log.Debug("rpc call failed, retrying", "op", op, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func convertParsedTransaction(signature string, result *rpc.GetTransactionResult) *model.RawTxNotification {
	tx := &model.RawTxNotification{
		Signature: signature,
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		tx.BlockTime = result.BlockTime.Time()
	}
	if result.Meta != nil {
		if result.Meta.Err != nil {
			tx.Meta.Err = fmt.Errorf("on-chain error: %v", result.Meta.Err)
		}
		tx.Meta.Fee = result.Meta.Fee
		tx.Meta.PreBalances = result.Meta.PreBalances
		tx.Meta.PostBalances = result.Meta.PostBalances
		tx.Meta.PreTokenBalances = convertTokenBalances(result.Meta.PreTokenBalances)
		tx.Meta.PostTokenBalances = convertTokenBalances(result.Meta.PostTokenBalances)
	}
	return tx
}

func convertTokenBalances(in []rpc.TokenBalance) []model.RawTokenBalance {
	out := make([]model.RawTokenBalance, 0, len(in))
	for _, b := range in {
		rb := model.RawTokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint.String(),
		}
		if b.Owner != nil {
			rb.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil {
			if b.UiTokenAmount.UiAmount != nil {
				rb.UIAmount = *b.UiTokenAmount.UiAmount
			}
			rb.Decimals = b.UiTokenAmount.Decimals
		}
		out = append(out, rb)
	}
	return out
}
