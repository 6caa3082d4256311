// Package payout sends processed withdrawals on-chain as ERC-20 USDT
// transfers from the platform wallet.
//
// USDT uses 6 decimal places; ledger amounts arrive as 2-decimal cents
// and are scaled up before hitting the contract. Sends go through a
// shared retry with backoff and a circuit breaker on the RPC endpoint,
// so a dead node fails fast instead of stalling every review.
package payout

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mbd888/trackrate/internal/circuitbreaker"
	"github.com/mbd888/trackrate/internal/retry"
)

// Token decimals for USDT.
const Decimals = 6

// ERC20 transfer(address,uint256) selector
var transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

var (
	ErrInvalidAddress  = errors.New("payout: invalid destination address")
	ErrGasPriceTooHigh = errors.New("payout: gas price above configured maximum")
	ErrCircuitOpen     = errors.New("payout: rpc circuit open")
)

// Config for the on-chain sender.
type Config struct {
	RPCURL        string
	TokenContract string
	PrivateKey    string // hex, no 0x prefix
	ChainID       int64
	GasLimit      uint64 // 0 = ERC20 transfer default
	MaxGasPrice   int64  // gwei, 0 = no cap
	MaxAttempts   int
	RetryBaseWait time.Duration
}

// DefaultConfig returns sensible defaults for everything but the
// endpoint and key material.
func DefaultConfig() Config {
	return Config{
		GasLimit:      65000,
		MaxAttempts:   3,
		RetryBaseWait: 2 * time.Second,
	}
}

// backend is the slice of ethclient.Client the sender needs. Tests
// substitute a fake to inspect the signed transaction.
type backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Sender signs and submits token transfers from the platform wallet.
// It satisfies the withdrawals service's Payout seam.
type Sender struct {
	client  backend
	config  Config
	key     *ecdsa.PrivateKey
	from    common.Address
	token   common.Address
	signer  types.Signer
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewSender connects to the RPC endpoint and prepares the platform
// signing key.
func NewSender(cfg Config, logger *slog.Logger) (*Sender, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return newSender(cfg, client, logger)
}

func newSender(cfg Config, client backend, logger *slog.Logger) (*Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !common.IsHexAddress(cfg.TokenContract) {
		return nil, fmt.Errorf("payout: invalid token contract %q", cfg.TokenContract)
	}
	key, err := crypto.HexToECDSA(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse platform key: %w", err)
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 65000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseWait <= 0 {
		cfg.RetryBaseWait = 2 * time.Second
	}

	return &Sender{
		client:  client,
		config:  cfg,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		token:   common.HexToAddress(cfg.TokenContract),
		signer:  types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
		breaker: circuitbreaker.New(5, 30*time.Second),
		logger:  logger,
	}, nil
}

// From returns the platform wallet address transfers are sent from.
func (s *Sender) From() string {
	return s.from.Hex()
}

// Send transfers amountCents worth of USDT to toAddress and returns the
// transaction hash. reference carries the withdrawal id for tracing.
// The nonce is refetched on every attempt so a replaced transaction
// does not wedge the wallet.
func (s *Sender) Send(ctx context.Context, toAddress string, amountCents int64, reference string) (string, error) {
	if !common.IsHexAddress(toAddress) {
		return "", ErrInvalidAddress
	}
	if !s.breaker.Allow() {
		SendsTotal.WithLabelValues("rejected").Inc()
		return "", ErrCircuitOpen
	}

	to := common.HexToAddress(toAddress)
	units := centsToUnits(amountCents)

	var hash string
	err := retry.Do(ctx, s.config.MaxAttempts, s.config.RetryBaseWait, func() error {
		h, err := s.submit(ctx, to, units)
		if err != nil {
			return err
		}
		hash = h
		return nil
	})
	if err != nil {
		s.breaker.RecordFailure()
		SendsTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	s.breaker.RecordSuccess()
	SendsTotal.WithLabelValues("sent").Inc()
	s.logger.Info("payout sent",
		"to", to.Hex(),
		"amountUnits", units.String(),
		"tx", hash,
		"reference", reference,
	)
	return hash, nil
}

func (s *Sender) submit(ctx context.Context, to common.Address, units *big.Int) (string, error) {
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}
	if s.config.MaxGasPrice > 0 {
		max := new(big.Int).Mul(big.NewInt(s.config.MaxGasPrice), big.NewInt(1e9)) // gwei to wei
		if gasPrice.Cmp(max) > 0 {
			return "", ErrGasPriceTooHigh
		}
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      s.config.GasLimit,
		To:       &s.token,
		Value:    big.NewInt(0),
		Data:     transferData(to, units),
	})
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to sign transaction: %w", err))
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// transferData builds the calldata for transfer(to, units): the 4-byte
// selector followed by two 32-byte-padded arguments.
func transferData(to common.Address, units *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(units.Bytes(), 32)...)
	return data
}

// centsToUnits scales a 2-decimal cent amount to 6-decimal token units.
func centsToUnits(cents int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(cents), big.NewInt(10000))
}
