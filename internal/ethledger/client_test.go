package ethledger

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/stretchr/testify/require"
)

const (
	contractAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testKey      = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
)

var (
	creatorAddr = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	clientAddr  = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

// fakeBackend answers contract calls from canned outputs. Methods it does
// not override panic through the nil embedded Backend.
type fakeBackend struct {
	Backend
	abi      abi.ABI
	outputs  map[string][]interface{}
	// countsAt overrides nextProjectId for calls pinned to a block.
	countsAt map[int64]int64
	mu       sync.Mutex
	receipts []receiptResult
}

type receiptResult struct {
	receipt *types.Receipt
	err     error
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	require.NoError(t, err)
	return &fakeBackend{abi: parsed, outputs: make(map[string][]interface{})}
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	if block != nil && method.Name == "nextProjectId" {
		if n, ok := f.countsAt[block.Int64()]; ok {
			return method.Outputs.Pack(big.NewInt(n))
		}
	}
	vals, ok := f.outputs[method.Name]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return method.Outputs.Pack(vals...)
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.receipts) == 0 {
		return nil, ethereum.NotFound
	}
	next := f.receipts[0]
	if len(f.receipts) > 1 {
		f.receipts = f.receipts[1:]
	}
	return next.receipt, next.err
}

func newTestClient(t *testing.T, backend *fakeBackend, key string) *Client {
	c, err := New(backend, Config{
		ContractAddress: contractAddr,
		PrivateKey:      key,
		ChainID:         31337,
		PollInterval:    5 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestClient_CountAndRecordAt(t *testing.T) {
	backend := newFakeBackend(t)
	backend.outputs["nextProjectId"] = []interface{}{big.NewInt(2)}
	backend.outputs["projects"] = []interface{}{
		"Logo", "Design a logo", big.NewInt(100000000000000000),
		creatorAddr, common.Address{}, big.NewInt(1700000000), false, false,
	}
	c := newTestClient(t, backend, "")

	n, err := c.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), n)

	rec, err := c.RecordAt(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.ID)
	require.Equal(t, "Logo", rec.Name)
	require.Equal(t, big.NewInt(100000000000000000), rec.Amount)
	require.True(t, rec.Creator.Equal(ledger.Account(creatorAddr.Hex())))
	require.True(t, rec.Counterparty.IsUnset())
	require.Equal(t, uint64(1700000000), rec.Deadline)
}

func TestClient_RecordAtEmptySlotIsNotFound(t *testing.T) {
	backend := newFakeBackend(t)
	backend.outputs["projects"] = []interface{}{
		"", "", big.NewInt(0), common.Address{}, common.Address{}, big.NewInt(0), false, false,
	}

	_, err := newTestClient(t, backend, "").RecordAt(context.Background(), 5)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestClient_ProfileOf(t *testing.T) {
	backend := newFakeBackend(t)
	backend.outputs["getProfile"] = []interface{}{"Bob", "builder", "ipfs://avatar"}
	c := newTestClient(t, backend, "")

	p, err := c.ProfileOf(context.Background(), ledger.Account(clientAddr.Hex()))
	require.NoError(t, err)
	require.Equal(t, "Bob", p.Name)
	require.Equal(t, "ipfs://avatar", p.Avatar)

	_, err = c.ProfileOf(context.Background(), "not-an-address")
	require.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestClient_CallFailureIsUnavailable(t *testing.T) {
	_, err := newTestClient(t, newFakeBackend(t), "").Count(context.Background())
	require.ErrorIs(t, err, ledger.ErrUnavailable)
}

func TestClient_Identity(t *testing.T) {
	readOnly := newTestClient(t, newFakeBackend(t), "")
	_, err := readOnly.ActiveAccount(context.Background())
	require.ErrorIs(t, err, ledger.ErrUnavailable)
	_, err = readOnly.SubmitComplete(context.Background(), ledger.Account(clientAddr.Hex()), 0)
	require.ErrorIs(t, err, ledger.ErrUnavailable)

	signer := newTestClient(t, newFakeBackend(t), "0x"+testKey)
	key, err := crypto.HexToECDSA(testKey)
	require.NoError(t, err)
	acct, err := signer.ActiveAccount(context.Background())
	require.NoError(t, err)
	require.True(t, acct.Equal(ledger.Account(crypto.PubkeyToAddress(key.PublicKey).Hex())))

	_, err = signer.SubmitComplete(context.Background(), ledger.Account(clientAddr.Hex()), 0)
	require.ErrorIs(t, err, ledger.ErrUnavailable)
}

func TestClient_AwaitSettlement(t *testing.T) {
	backend := newFakeBackend(t)
	backend.receipts = []receiptResult{
		{err: ethereum.NotFound},
		{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42)}},
	}
	c := newTestClient(t, backend, "")

	receipt, err := c.AwaitSettlement(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, uint64(42), receipt.Block)
}

func TestClient_AwaitSettlementReadsCreatedEvent(t *testing.T) {
	backend := newFakeBackend(t)
	c := newTestClient(t, backend, "0x"+testKey)
	c.creates["0xabc"] = pendingCreate{name: "Logo", description: "Design a logo", amount: big.NewInt(100)}

	event := c.abi.Events["ProjectCreated"]
	backend.receipts = []receiptResult{{receipt: &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(42),
		Logs: []*types.Log{{
			Address: common.HexToAddress(contractAddr),
			Topics: []common.Hash{
				event.ID,
				common.BigToHash(big.NewInt(7)),
				common.BytesToHash(c.from.Bytes()),
			},
		}},
	}}}

	receipt, err := c.AwaitSettlement(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, receipt.ProjectID)
	require.Equal(t, uint64(7), *receipt.ProjectID)
	require.Empty(t, c.creates)
}

func TestClient_AwaitSettlementFindsCreatedRecordWithoutEvent(t *testing.T) {
	backend := newFakeBackend(t)
	c := newTestClient(t, backend, "0x"+testKey)
	c.creates["0xabc"] = pendingCreate{name: "Logo", description: "Design a logo", amount: big.NewInt(100)}

	backend.countsAt = map[int64]int64{41: 3, 42: 4}
	backend.outputs["projects"] = []interface{}{
		"Logo", "Design a logo", big.NewInt(100),
		c.from, common.Address{}, big.NewInt(1700000000), false, false,
	}
	backend.receipts = []receiptResult{
		{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42)}},
	}

	receipt, err := c.AwaitSettlement(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, receipt.ProjectID)
	require.Equal(t, uint64(3), *receipt.ProjectID)
}

func TestClient_AwaitSettlementReverted(t *testing.T) {
	backend := newFakeBackend(t)
	backend.receipts = []receiptResult{
		{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(7)}},
	}

	_, err := newTestClient(t, backend, "").AwaitSettlement(context.Background(), "0xabc")
	require.ErrorIs(t, err, ledger.ErrReverted)
}

func TestClient_AwaitSettlementTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, newFakeBackend(t), "").AwaitSettlement(ctx, "0xabc")
	require.ErrorIs(t, err, ledger.ErrTimeout)
}

func TestMapCallError(t *testing.T) {
	err := mapCallError("acceptTerms", errors.New("execution reverted: Project already accepted"))
	reason, ok := ledger.RevertReason(err)
	require.True(t, ok)
	require.Equal(t, "Project already accepted", reason)

	require.ErrorIs(t, mapCallError("projects", errors.New("dial tcp: refused")), ledger.ErrUnavailable)
	require.ErrorIs(t, mapCallError("projects", context.DeadlineExceeded), ledger.ErrTimeout)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(newFakeBackend(t), Config{ContractAddress: "nope"}, nil)
	require.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = New(newFakeBackend(t), Config{ContractAddress: contractAddr, PrivateKey: "zz"}, nil)
	require.ErrorIs(t, err, ledger.ErrInvalidInput)
}
