// Package ethledger reads and writes the escrow contract over JSON-RPC.
package ethledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rpggio/gigboard/internal/ledger"
)

const defaultPollInterval = 2 * time.Second

// Config configures the contract client.
type Config struct {
	RPCURL          string
	ContractAddress string
	// PrivateKey is a hex secp256k1 key. Without it the client is read-only.
	PrivateKey   string
	ChainID      int64
	PollInterval time.Duration
}

// Backend is the JSON-RPC surface the client needs.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client implements ledger.Ledger and ledger.IdentityProvider against the contract.
type Client struct {
	backend  Backend
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	poll     time.Duration
	logger   *slog.Logger
	closer   func()

	mu      sync.Mutex
	creates map[ledger.Handle]pendingCreate
}

// pendingCreate remembers a sent createProject until its receipt is seen.
type pendingCreate struct {
	name        string
	description string
	amount      *big.Int
}

// Dial connects to cfg.RPCURL and binds the contract.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ledger.ErrUnavailable, cfg.RPCURL, err)
	}
	if cfg.ChainID == 0 {
		id, err := rpc.ChainID(ctx)
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("%w: reading chain id: %v", ledger.ErrUnavailable, err)
		}
		cfg.ChainID = id.Int64()
	}
	c, err := New(rpc, cfg, logger)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	c.closer = rpc.Close
	return c, nil
}

// New binds the contract on an existing backend.
func New(backend Backend, cfg Config, logger *slog.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("%w: contract address %q", ledger.ErrInvalidInput, cfg.ContractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("parsing contract abi: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	address := common.HexToAddress(cfg.ContractAddress)
	c := &Client{
		backend:  backend,
		abi:      parsed,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		chainID:  big.NewInt(cfg.ChainID),
		poll:     cfg.PollInterval,
		logger:   logger.With("contract", address.Hex()),
		creates:  make(map[ledger.Handle]pendingCreate),
	}
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%w: private key: %v", ledger.ErrInvalidInput, err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// ActiveAccount returns the signer's address.
func (c *Client) ActiveAccount(ctx context.Context) (ledger.Account, error) {
	if c.key == nil {
		return "", fmt.Errorf("%w: no signing key configured", ledger.ErrUnavailable)
	}
	return ledger.Account(c.from.Hex()), nil
}

// Count returns nextProjectId.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	return c.countAt(ctx, nil)
}

// RecordAt returns projects(index). Slots with no creator do not exist.
func (c *Client) RecordAt(ctx context.Context, index uint64) (ledger.ProjectRecord, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "projects", new(big.Int).SetUint64(index)); err != nil {
		return ledger.ProjectRecord{}, mapCallError("projects", err)
	}
	rec, err := decodeRecord(index, out)
	if err != nil {
		return ledger.ProjectRecord{}, err
	}
	return rec, nil
}

// ProfileOf returns getProfile(account).
func (c *Client) ProfileOf(ctx context.Context, account ledger.Account) (ledger.Profile, error) {
	if !common.IsHexAddress(string(account)) {
		return ledger.Profile{}, fmt.Errorf("%w: account %q", ledger.ErrInvalidInput, account)
	}
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getProfile", common.HexToAddress(string(account))); err != nil {
		return ledger.Profile{}, mapCallError("getProfile", err)
	}
	if len(out) != 3 {
		return ledger.Profile{}, fmt.Errorf("getProfile returned %d values", len(out))
	}
	return ledger.Profile{
		Account: account,
		Name:    *abi.ConvertType(out[0], new(string)).(*string),
		Bio:     *abi.ConvertType(out[1], new(string)).(*string),
		Avatar:  *abi.ConvertType(out[2], new(string)).(*string),
	}, nil
}

// SubmitCreate sends createProject.
func (c *Client) SubmitCreate(ctx context.Context, from ledger.Account, name, description string, amount *big.Int) (ledger.Handle, error) {
	handle, err := c.transact(ctx, from, nil, "createProject", name, description, amount)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.creates[handle] = pendingCreate{name: name, description: description, amount: new(big.Int).Set(amount)}
	c.mu.Unlock()
	return handle, nil
}

// SubmitAccept sends acceptTerms with escrow as the transaction value.
func (c *Client) SubmitAccept(ctx context.Context, from ledger.Account, id uint64, escrow *big.Int) (ledger.Handle, error) {
	return c.transact(ctx, from, escrow, "acceptTerms", new(big.Int).SetUint64(id))
}

// SubmitComplete sends completeProject.
func (c *Client) SubmitComplete(ctx context.Context, from ledger.Account, id uint64) (ledger.Handle, error) {
	return c.transact(ctx, from, nil, "completeProject", new(big.Int).SetUint64(id))
}

// SubmitProfile sends createOrUpdateProfile.
func (c *Client) SubmitProfile(ctx context.Context, from ledger.Account, profile ledger.Profile) (ledger.Handle, error) {
	return c.transact(ctx, from, nil, "createOrUpdateProfile", profile.Name, profile.Bio, profile.Avatar)
}

func (c *Client) transact(ctx context.Context, from ledger.Account, value *big.Int, method string, params ...interface{}) (ledger.Handle, error) {
	if c.key == nil {
		return "", fmt.Errorf("%w: no signing key configured", ledger.ErrUnavailable)
	}
	if !from.Equal(ledger.Account(c.from.Hex())) {
		return "", fmt.Errorf("%w: signer is %s, not %s", ledger.ErrUnavailable, c.from.Hex(), from)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("building transactor: %w", err)
	}
	opts.Context = ctx
	opts.Value = value

	tx, err := c.contract.Transact(opts, method, params...)
	if err != nil {
		return "", mapCallError(method, err)
	}
	c.logger.Info("transaction sent", "method", method, "hash", tx.Hash().Hex())
	return ledger.Handle(tx.Hash().Hex()), nil
}

// AwaitSettlement polls for the receipt until it is mined or ctx ends.
func (c *Client) AwaitSettlement(ctx context.Context, handle ledger.Handle) (ledger.Receipt, error) {
	hash := common.HexToHash(string(handle))
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			create, isCreate := c.takeCreate(handle)
			if receipt.Status == types.ReceiptStatusFailed {
				return ledger.Receipt{}, ledger.Revert("transaction reverted in block " + receipt.BlockNumber.String())
			}
			out := ledger.Receipt{
				Handle:    handle,
				Block:     receipt.BlockNumber.Uint64(),
				SettledAt: time.Now(),
			}
			if isCreate {
				out.ProjectID = c.createdProjectID(ctx, receipt, create)
			}
			return out, nil
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
		default:
			return ledger.Receipt{}, fmt.Errorf("%w: fetching receipt: %v", ledger.ErrUnavailable, err)
		}

		select {
		case <-ctx.Done():
			c.takeCreate(handle)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ledger.Receipt{}, fmt.Errorf("%w: %s still pending", ledger.ErrTimeout, handle)
			}
			return ledger.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) takeCreate(handle ledger.Handle) (pendingCreate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.creates[handle]
	delete(c.creates, handle)
	return p, ok
}

// createdProjectID finds the record a mined createProject appended. It reads
// the ProjectCreated log when the contract emits one; otherwise it scans the
// records appended in the receipt's block for one matching the request. A
// miss returns nil, and the record still appears after the rebuild.
func (c *Client) createdProjectID(ctx context.Context, receipt *types.Receipt, create pendingCreate) *uint64 {
	event := c.abi.Events["ProjectCreated"]
	for _, log := range receipt.Logs {
		if log == nil || log.Address != c.address || len(log.Topics) < 2 || log.Topics[0] != event.ID {
			continue
		}
		id := new(big.Int).SetBytes(log.Topics[1].Bytes())
		if id.IsUint64() {
			v := id.Uint64()
			return &v
		}
	}

	block := receipt.BlockNumber
	if block == nil || block.Sign() == 0 {
		return nil
	}
	after, err := c.countAt(ctx, block)
	if err != nil {
		c.logger.Warn("could not resolve created project", "error", err)
		return nil
	}
	before, err := c.countAt(ctx, new(big.Int).Sub(block, big.NewInt(1)))
	if err != nil {
		c.logger.Warn("could not resolve created project", "error", err)
		return nil
	}
	for i := before; i < after; i++ {
		var out []interface{}
		opts := &bind.CallOpts{Context: ctx, BlockNumber: block}
		if err := c.contract.Call(opts, &out, "projects", new(big.Int).SetUint64(i)); err != nil {
			c.logger.Warn("could not resolve created project", "index", i, "error", err)
			return nil
		}
		rec, err := decodeRecord(i, out)
		if err != nil {
			continue
		}
		if rec.Creator.Equal(ledger.Account(c.from.Hex())) && rec.Name == create.name &&
			rec.Description == create.description && rec.Amount.Cmp(create.amount) == 0 {
			return &i
		}
	}
	return nil
}

// countAt reads nextProjectId at block, or at the latest block when nil.
func (c *Client) countAt(ctx context.Context, block *big.Int) (uint64, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx, BlockNumber: block}, &out, "nextProjectId"); err != nil {
		return 0, mapCallError("nextProjectId", err)
	}
	n := *abi.ConvertType(out[0], new(big.Int)).(*big.Int)
	if !n.IsUint64() {
		return 0, fmt.Errorf("record count %s out of range", n.String())
	}
	return n.Uint64(), nil
}

func decodeRecord(index uint64, out []interface{}) (ledger.ProjectRecord, error) {
	if len(out) != 8 {
		return ledger.ProjectRecord{}, fmt.Errorf("projects returned %d values", len(out))
	}
	creator := *abi.ConvertType(out[3], new(common.Address)).(*common.Address)
	if creator == (common.Address{}) {
		return ledger.ProjectRecord{}, fmt.Errorf("%w: index %d", ledger.ErrNotFound, index)
	}
	counterparty := *abi.ConvertType(out[4], new(common.Address)).(*common.Address)
	deadline := *abi.ConvertType(out[5], new(big.Int)).(*big.Int)

	return ledger.ProjectRecord{
		ID:           index,
		Name:         *abi.ConvertType(out[0], new(string)).(*string),
		Description:  *abi.ConvertType(out[1], new(string)).(*string),
		Amount:       new(big.Int).Set(abi.ConvertType(out[2], new(big.Int)).(*big.Int)),
		Creator:      ledger.Account(creator.Hex()),
		Counterparty: ledger.Account(counterparty.Hex()),
		Deadline:     deadline.Uint64(),
		IsAccepted:   *abi.ConvertType(out[6], new(bool)).(*bool),
		IsCompleted:  *abi.ConvertType(out[7], new(bool)).(*bool),
	}, nil
}

// mapCallError classifies RPC failures. Gas estimation surfaces contract
// reverts before anything is sent.
func mapCallError(method string, err error) error {
	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted"); idx >= 0 {
		reason := strings.TrimSpace(strings.TrimPrefix(msg[idx:], "execution reverted"))
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		return ledger.Revert(reason)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ledger.ErrTimeout, method, err)
	}
	return fmt.Errorf("%w: %s: %v", ledger.ErrUnavailable, method, err)
}
