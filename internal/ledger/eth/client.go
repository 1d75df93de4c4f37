// Package eth implements the ledger facade against the Matchmaker contract
// on an EVM chain. It performs no business-rule validation: calls are packed,
// signed, sent, and mined, and failures are classified into the transient /
// rejected taxonomy. Confirming that a transition actually happened is the
// caller's job, via a fresh read.
package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/clapogame/clapobot/internal/commit"
	"github.com/clapogame/clapobot/internal/domain"
)

const (
	// writeGasLimit matches the gas hint the contract needs for state
	// transitions on Monad-class chains.
	writeGasLimit uint64 = 10_000_000
	// revealGasLimit is higher: revealAndSettle reads the price oracle for
	// every asset and executes the payout.
	revealGasLimit uint64 = 20_000_000

	receiptPollInterval = time.Second
)

// ClientConfig holds connection and contract parameters for the ledger.
type ClientConfig struct {
	RPCURL       string
	ChainID      int64
	Matchmaker   string // Matchmaker contract address
	NFTVault     string // stake custody contract the ERC-721 approve targets
	PrivateKey   string // hex-encoded, no 0x prefix required
	CallTimeout  time.Duration
	MinedTimeout time.Duration
}

// Client talks to the Matchmaker contract through an Ethereum JSON-RPC node.
type Client struct {
	eth          *ethclient.Client
	matchmaker   common.Address
	nftVault     common.Address
	key          *ecdsa.PrivateKey
	from         common.Address
	chainID      *big.Int
	signer       types.Signer
	callTimeout  time.Duration
	minedTimeout time.Duration
	logger       *slog.Logger
}

// New dials the RPC endpoint and prepares the signing identity.
func New(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("eth: invalid private key: %w", err)
	}

	conn, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("eth: dial %s: %w", cfg.RPCURL, err)
	}

	chainID := big.NewInt(cfg.ChainID)
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	minedTimeout := cfg.MinedTimeout
	if minedTimeout <= 0 {
		minedTimeout = 90 * time.Second
	}

	return &Client{
		eth:          conn,
		matchmaker:   common.HexToAddress(cfg.Matchmaker),
		nftVault:     common.HexToAddress(cfg.NFTVault),
		key:          key,
		from:         ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		signer:       types.LatestSignerForChainID(chainID),
		callTimeout:  callTimeout,
		minedTimeout: minedTimeout,
		logger:       logger.With(slog.String("component", "ledger")),
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Address returns the caller's wallet address in checksum form.
func (c *Client) Address() string {
	return c.from.Hex()
}

// ApproveStake authorizes the NFT vault to take custody of the stake token.
func (c *Client) ApproveStake(ctx context.Context, stake domain.StakeRef) error {
	input, err := erc721.Pack("approve", c.nftVault, new(big.Int).SetUint64(stake.TokenID))
	if err != nil {
		return fmt.Errorf("eth: pack approve: %w", err)
	}
	_, err = c.send(ctx, "approveStake", common.HexToAddress(stake.Contract), input, writeGasLimit)
	return err
}

// CreateMatch locks the stake and commitment into a new match. The id is not
// returned by the transaction itself; it is read back from the contract once
// the transaction has mined.
func (c *Client) CreateMatch(ctx context.Context, stake domain.StakeRef, commitHash [32]byte) (uint64, error) {
	input, err := matchmaker.Pack("createMatch",
		common.HexToAddress(stake.Contract),
		new(big.Int).SetUint64(stake.TokenID),
		commitHash,
	)
	if err != nil {
		return 0, fmt.Errorf("eth: pack createMatch: %w", err)
	}
	if _, err := c.send(ctx, "createMatch", c.matchmaker, input, writeGasLimit); err != nil {
		return 0, err
	}

	id, err := c.GetActiveMatch(ctx, c.from.Hex())
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveMatch) {
			return 0, domain.Inconsistent("createMatch", "transaction mined but no active match recorded")
		}
		return 0, err
	}
	return id, nil
}

// JoinMatch fills the open slot of an existing match.
func (c *Client) JoinMatch(ctx context.Context, matchID uint64, stake domain.StakeRef, commitHash [32]byte) error {
	input, err := matchmaker.Pack("joinMatch",
		new(big.Int).SetUint64(matchID),
		common.HexToAddress(stake.Contract),
		new(big.Int).SetUint64(stake.TokenID),
		commitHash,
	)
	if err != nil {
		return fmt.Errorf("eth: pack joinMatch: %w", err)
	}
	_, err = c.send(ctx, "joinMatch", c.matchmaker, input, writeGasLimit)
	return err
}

// StartMatch opens the price window.
func (c *Client) StartMatch(ctx context.Context, matchID uint64) error {
	return c.sendSimple(ctx, "startMatch", matchID, writeGasLimit)
}

// RevealAndSettle submits the disclosed selection for verification and
// scoring. The wire form is the commitment encoding: symbol hashes, role
// codes, and the salt hash.
func (c *Client) RevealAndSettle(ctx context.Context, matchID uint64, secret domain.Secret) error {
	assets := make([][32]byte, len(secret.Symbols))
	for i, sym := range secret.Symbols {
		assets[i] = commit.SymbolHash(sym)
	}
	roles := make([]uint8, len(secret.Roles))
	for i, r := range secret.Roles {
		roles[i] = uint8(r)
	}

	input, err := matchmaker.Pack("revealAndSettle",
		new(big.Int).SetUint64(matchID),
		assets,
		roles,
		commit.SaltHash(secret.Salt),
	)
	if err != nil {
		return fmt.Errorf("eth: pack revealAndSettle: %w", err)
	}
	_, err = c.send(ctx, "revealAndSettle", c.matchmaker, input, revealGasLimit)
	return err
}

// CancelMatch abandons a match whose opponent slot is still empty.
func (c *Client) CancelMatch(ctx context.Context, matchID uint64) error {
	return c.sendSimple(ctx, "cancelMatch", matchID, writeGasLimit)
}

// ClearStuckMatch detaches the caller from their own stale match.
func (c *Client) ClearStuckMatch(ctx context.Context) error {
	input, err := matchmaker.Pack("clearStuckMatch")
	if err != nil {
		return fmt.Errorf("eth: pack clearStuckMatch: %w", err)
	}
	_, err = c.send(ctx, "clearStuckMatch", c.matchmaker, input, writeGasLimit)
	return err
}

// ForceExpireMatch expires a stale match the caller is not part of.
func (c *Client) ForceExpireMatch(ctx context.Context, matchID uint64) error {
	return c.sendSimple(ctx, "forceExpireMatch", matchID, writeGasLimit)
}

// GetMatch reads a snapshot of the match record.
func (c *Client) GetMatch(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	input, err := matchmaker.Pack("getMatch", new(big.Int).SetUint64(matchID))
	if err != nil {
		return domain.MatchSnapshot{}, fmt.Errorf("eth: pack getMatch: %w", err)
	}

	output, err := c.call(ctx, "getMatch", input)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}

	results, err := matchmaker.Unpack("getMatch", output)
	if err != nil {
		return domain.MatchSnapshot{}, fmt.Errorf("eth: unpack getMatch: %w", err)
	}
	raw := *abi.ConvertType(results[0], new(rawMatch)).(*rawMatch)
	if raw.Id.Sign() == 0 {
		// The contract returns a zeroed tuple for ids it has never assigned.
		return domain.MatchSnapshot{}, domain.ErrNotFound
	}
	return raw.toSnapshot(), nil
}

// GetActiveMatch returns the match id the address is bound to, or
// domain.ErrNoActiveMatch when the contract reports none.
func (c *Client) GetActiveMatch(ctx context.Context, address string) (uint64, error) {
	input, err := matchmaker.Pack("getPlayerActiveMatch", common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("eth: pack getPlayerActiveMatch: %w", err)
	}

	output, err := c.call(ctx, "getPlayerActiveMatch", input)
	if err != nil {
		return 0, err
	}

	results, err := matchmaker.Unpack("getPlayerActiveMatch", output)
	if err != nil {
		return 0, fmt.Errorf("eth: unpack getPlayerActiveMatch: %w", err)
	}
	id := abi.ConvertType(results[0], new(big.Int)).(*big.Int)
	if id.Sign() == 0 {
		return 0, domain.ErrNoActiveMatch
	}
	return id.Uint64(), nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func (c *Client) sendSimple(ctx context.Context, method string, matchID uint64, gas uint64) error {
	input, err := matchmaker.Pack(method, new(big.Int).SetUint64(matchID))
	if err != nil {
		return fmt.Errorf("eth: pack %s: %w", method, err)
	}
	_, err = c.send(ctx, method, c.matchmaker, input, gas)
	return err
}

// call performs a read against the contract with the configured timeout.
func (c *Client) call(ctx context.Context, op string, input []byte) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	output, err := c.eth.CallContract(callCtx, ethereum.CallMsg{
		From: c.from,
		To:   &c.matchmaker,
		Data: input,
	}, nil)
	if err != nil {
		return nil, domain.Transient(op, err)
	}
	return output, nil
}

// send signs and submits a transaction, waits for it to mine, and classifies
// the outcome. A mined transaction with a failed status is replayed as a call
// to recover the contract's revert reason.
func (c *Client) send(ctx context.Context, op string, to common.Address, input []byte, gas uint64) (*types.Receipt, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(callCtx, c.from)
	if err != nil {
		return nil, domain.Transient(op, fmt.Errorf("nonce: %w", err))
	}
	gasPrice, err := c.eth.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, domain.Transient(op, fmt.Errorf("gas price: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("eth: sign %s: %w", op, err)
	}

	if err := c.eth.SendTransaction(callCtx, signed); err != nil {
		return nil, domain.Transient(op, fmt.Errorf("send: %w", err))
	}

	c.logger.DebugContext(ctx, "transaction submitted",
		slog.String("op", op),
		slog.String("tx", signed.Hash().Hex()),
	)

	receipt, err := c.waitMined(ctx, op, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		reason := c.revertReason(ctx, to, input, receipt.BlockNumber)
		return nil, domain.Rejected(op, reason)
	}
	return receipt, nil
}

// waitMined polls for the transaction receipt until it lands or the mined
// timeout expires. A timeout is transient: the transaction may still land,
// and the caller's confirm-by-read will pick it up.
func (c *Client) waitMined(ctx context.Context, op string, hash common.Hash) (*types.Receipt, error) {
	deadline := time.NewTimer(c.minedTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, domain.Transient(op, fmt.Errorf("receipt: %w", err))
		}

		select {
		case <-ctx.Done():
			return nil, domain.Transient(op, ctx.Err())
		case <-deadline.C:
			return nil, domain.Transient(op, fmt.Errorf("transaction %s not mined within %s", hash.Hex(), c.minedTimeout))
		case <-ticker.C:
		}
	}
}

// revertReason replays a failed transaction as a call at its block to
// extract the contract's revert string. Best effort: when the node does not
// cooperate a generic reason is returned.
func (c *Client) revertReason(ctx context.Context, to common.Address, input []byte, block *big.Int) string {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	_, err := c.eth.CallContract(callCtx, ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Data: input,
	}, block)
	if err == nil {
		return "transaction reverted"
	}
	return err.Error()
}

// rawMatch mirrors the getMatch tuple layout.
type rawMatch struct {
	Id        *big.Int
	State     uint8
	CreatedAt *big.Int
	StartTime *big.Int
	Player1   rawPlayer
	Player2   rawPlayer
}

type rawPlayer struct {
	Addr        common.Address
	NftContract common.Address
	NftTokenId  *big.Int
	CommitHash  [32]byte
	Committed   bool
	Revealed    bool
}

func (r rawMatch) toSnapshot() domain.MatchSnapshot {
	snap := domain.MatchSnapshot{
		ID:    r.Id.Uint64(),
		Phase: domain.Phase(r.State),
	}
	if r.CreatedAt.Sign() > 0 {
		snap.CreatedAt = time.Unix(r.CreatedAt.Int64(), 0)
	}
	if r.StartTime.Sign() > 0 {
		snap.StartedAt = time.Unix(r.StartTime.Int64(), 0)
	}
	snap.Players[0] = r.Player1.toSlot()
	snap.Players[1] = r.Player2.toSlot()
	return snap
}

func (r rawPlayer) toSlot() domain.PlayerSlot {
	slot := domain.PlayerSlot{
		CommitHash: r.CommitHash,
		Committed:  r.Committed,
		Revealed:   r.Revealed,
	}
	if r.Addr != (common.Address{}) {
		slot.Address = r.Addr.Hex()
		slot.Stake = domain.StakeRef{
			Contract: r.NftContract.Hex(),
			TokenID:  r.NftTokenId.Uint64(),
		}
	}
	return slot
}

// Compile-time interface check.
var _ domain.Ledger = (*Client)(nil)
