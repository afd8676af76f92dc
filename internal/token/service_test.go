package token

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kg(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- Create ---

func TestCreate_TransferredToOwner(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
		OwnerAccount:      "0.0.1001",
		OwnerSigningKey:   "key-A",
		Metadata:          map[string]string{"origin": "mato grosso"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AssetID)
	assert.True(t, res.Transferred)
	assert.Equal(t, "0.0.1001", res.Owner)

	own, err := svc.Ownership(res.AssetID)
	require.NoError(t, err)
	assert.Equal(t, "0.0.1001", own.Owner)
	assert.Empty(t, own.PreviousOwner)

	balances, err := svc.Balances(res.AssetID)
	require.NoError(t, err)
	assert.True(t, balances["0.0.1001"].Equal(kg("100.00")))
	assert.True(t, balances[testTreasury].IsZero())

	md, err := svc.Metadata(res.AssetID)
	require.NoError(t, err)
	assert.Equal(t, "stock", md.Type)
	assert.Equal(t, "kg", md.Unit)
	assert.Equal(t, "mato grosso", md.Attributes["origin"])
}

func TestCreate_NoOwnerKey_StaysTreasuryHeld(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Soy",
		InitialQuantityKg: kg("250.50"),
		OwnerAccount:      "0.0.1002",
	})
	require.NoError(t, err)
	assert.False(t, res.Transferred)
	assert.Equal(t, testTreasury, res.Owner)
	assert.Contains(t, res.Message, "associated")

	own, err := svc.Ownership(res.AssetID)
	require.NoError(t, err)
	assert.Equal(t, testTreasury, own.Owner)

	balances, _ := svc.Balances(res.AssetID)
	assert.True(t, balances[testTreasury].Equal(kg("250.50")))
}

func TestCreate_TransferFails_CreationStillSucceeds(t *testing.T) {
	gw := newFakeGateway()
	gw.transferErr = errors.New("gateway timeout")
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Corn",
		InitialQuantityKg: kg("40.00"),
		OwnerAccount:      "0.0.1003",
		OwnerSigningKey:   "key-B",
	})
	require.NoError(t, err, "create is committed; transfer sub-failure must not fail the operation")
	require.NotEmpty(t, res.AssetID)
	assert.False(t, res.Transferred)
	assert.Contains(t, res.Message, "asset created, transfer failed")

	// Balances stay treasury-held and ownership stays with treasury.
	own, _ := svc.Ownership(res.AssetID)
	assert.Equal(t, testTreasury, own.Owner)
	balances, _ := svc.Balances(res.AssetID)
	assert.True(t, balances[testTreasury].Equal(kg("40.00")))
}

func TestCreate_AlreadyAssociatedOwner_TreatedAsSuccess(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	// Inject the already-associated condition on the owner's associate call;
	// the orchestrator must fold it into success and continue to the
	// transfer step.
	gw.associateErr["0.0.1004"] = alreadyAssociatedErr()
	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Rice",
		InitialQuantityKg: kg("10.00"),
		OwnerAccount:      "0.0.1004",
		OwnerSigningKey:   "key-C",
	})
	require.NoError(t, err)
	// Association was "already done", but the transfer still needs the fake
	// relationship to exist.
	assert.False(t, res.Transferred)
	assert.Contains(t, res.Message, "transfer failed")
}

func TestCreate_InvalidQuantity(t *testing.T) {
	svc := newTestService(newFakeGateway(), false)

	_, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("1.005"), // finer than 2 decimals
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = svc.Create(context.Background(), CreateRequest{
		InitialQuantityKg: kg("10.00"),
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

// --- Mint ---

func TestMint_OwnerAssociated_Transferred(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
		OwnerAccount:      "0.0.1001",
		OwnerSigningKey:   "key-A",
	})
	require.NoError(t, err)

	mint, err := svc.Mint(context.Background(), res.AssetID, kg("50.00"), "0.0.1001")
	require.NoError(t, err)
	assert.True(t, mint.Transferred)
	assert.Equal(t, "0.0.1001", mint.Owner)

	balances, _ := svc.Balances(res.AssetID)
	assert.True(t, balances["0.0.1001"].Equal(kg("150.00")))
	assert.True(t, balances[testTreasury].IsZero())
}

func TestMint_OwnerNotAssociated_RecoverableCondition(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
		OwnerAccount:      "0.0.1001",
		OwnerSigningKey:   "key-A",
	})
	require.NoError(t, err)

	// The owner drops its ledger relationship; the next mint's forward
	// transfer hits NOT_ASSOCIATED, which is recoverable.
	gw.dissociate(res.AssetID, "0.0.1001")

	before, _ := svc.Balances(res.AssetID)
	mint, err := svc.Mint(context.Background(), res.AssetID, kg("50.00"), "")
	require.NoError(t, err, "the mint itself succeeded; not-associated must not be fatal")
	assert.False(t, mint.Transferred)
	assert.Contains(t, mint.Message, "associate")

	after, _ := svc.Balances(res.AssetID)
	assert.True(t, after[testTreasury].Sub(before[testTreasury]).Equal(kg("50.00")),
		"minted amount must land in treasury")
}

func TestMint_UnexpectedTransferFailure_IsFatal(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
		OwnerAccount:      "0.0.1001",
		OwnerSigningKey:   "key-A",
	})
	require.NoError(t, err)

	gw.transferErr = errors.New("connection reset")
	_, err = svc.Mint(context.Background(), res.AssetID, kg("5.00"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mint succeeded")
}

func TestMint_GuardRejectsNonOwner(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
		OwnerAccount:      "0.0.1001",
		OwnerSigningKey:   "key-A",
	})
	require.NoError(t, err)

	callsBefore := len(gw.calls)
	_, err = svc.Mint(context.Background(), res.AssetID, kg("5.00"), "0.0.9999")
	require.Error(t, err)
	assert.True(t, IsAuthorization(err))
	assert.Equal(t, callsBefore, len(gw.calls), "no ledger call may happen after a guard rejection")
}

func TestMint_NonPositiveQuantity_RejectedBeforeLedgerCall(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
	})
	require.NoError(t, err)

	callsBefore := len(gw.calls)
	for _, q := range []string{"0", "-5.00"} {
		_, err := svc.Mint(context.Background(), res.AssetID, kg(q), "")
		require.Error(t, err, q)
		assert.True(t, IsValidation(err), q)
	}
	assert.Equal(t, callsBefore, len(gw.calls), "validation must reject before any ledger call")
}

// --- Burn ---

func TestBurn_ExceedsSupply_Rejected(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
	})
	require.NoError(t, err)

	_, err = svc.Burn(context.Background(), res.AssetID, kg("100.01"), "")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	for _, call := range gw.calls {
		assert.NotEqual(t, "burn", call, "no burn call may be issued for an over-supply request")
	}
}

func TestBurn_Success_SupplyAndBalancesReduced(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
	})
	require.NoError(t, err)

	burn, err := svc.Burn(context.Background(), res.AssetID, kg("30.00"), "")
	require.NoError(t, err)
	assert.True(t, burn.RemainingSupplyKg.Equal(kg("70.00")))

	// Reconciliation after the burn pulls the ledger's truth.
	balances, _ := svc.Balances(res.AssetID)
	assert.True(t, balances[testTreasury].Equal(kg("70.00")))
}

func TestBurn_NonPositiveQuantity_RejectedBeforeLedgerCall(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)

	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg("100.00"),
	})
	require.NoError(t, err)

	callsBefore := len(gw.calls)
	_, err = svc.Burn(context.Background(), res.AssetID, kg("0"), "")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, callsBefore, len(gw.calls), "validation must reject before any ledger call")
}

// --- Sell ---

// sellFixture creates an asset owned by seller with the given supply, and
// associates the buyer so plain transfers succeed.
func sellFixture(t *testing.T, gw *fakeGateway, svc *Service, supply string) string {
	t.Helper()
	res, err := svc.Create(context.Background(), CreateRequest{
		ProductName:       "Wheat",
		InitialQuantityKg: kg(supply),
		OwnerAccount:      "0.0.1001",
		OwnerSigningKey:   "key-A",
	})
	require.NoError(t, err)
	require.True(t, res.Transferred)
	return res.AssetID
}

func TestSell_Partial_OwnershipUnchanged(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "100.00")

	_, err := svc.Mint(context.Background(), assetID, kg("50.00"), "")
	require.NoError(t, err)

	res, err := svc.Sell(context.Background(), SellRequest{
		AssetID:          assetID,
		QuantityKg:       kg("30.00"),
		Seller:           "0.0.1001",
		SellerSigningKey: "key-A",
		Buyer:            "0.0.2002",
		BuyerSigningKey:  "key-B",
	})
	require.NoError(t, err)
	assert.False(t, res.OwnershipTransferred)

	own, _ := svc.Ownership(assetID)
	assert.Equal(t, "0.0.1001", own.Owner, "partial sale must not change ownership")

	balances, _ := svc.Balances(assetID)
	assert.True(t, balances["0.0.1001"].Equal(kg("120.00")))
	assert.True(t, balances["0.0.2002"].Equal(kg("30.00")))
}

func TestSell_FullSupply_OwnershipTransferred(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "150.00")

	res, err := svc.Sell(context.Background(), SellRequest{
		AssetID:          assetID,
		QuantityKg:       kg("150.00"),
		Seller:           "0.0.1001",
		SellerSigningKey: "key-A",
		Buyer:            "0.0.2002",
		BuyerSigningKey:  "key-B",
	})
	require.NoError(t, err)
	assert.True(t, res.OwnershipTransferred)

	own, _ := svc.Ownership(assetID)
	assert.Equal(t, "0.0.2002", own.Owner)
	assert.Equal(t, "0.0.1001", own.PreviousOwner)
	require.NotNil(t, own.TransferredAt)
}

func TestSell_RequiresCounterpartyKey(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "100.00")

	_, err := svc.Sell(context.Background(), SellRequest{
		AssetID:    assetID,
		QuantityKg: kg("10.00"),
		Seller:     "0.0.1001",
		Buyer:      "0.0.2002",
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestSell_TreasuryFallback_TestingOnly(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, true)
	assetID := sellFixture(t, gw, svc, "100.00")

	// Buyer must already hold a relationship; no buyer key means no
	// association step.
	_, err := svc.Associate(context.Background(), assetID, "0.0.2002", "key-B")
	require.NoError(t, err)

	res, err := svc.Sell(context.Background(), SellRequest{
		AssetID:    assetID,
		QuantityKg: kg("10.00"),
		Seller:     "0.0.1001",
		Buyer:      "0.0.2002",
	})
	require.NoError(t, err)
	assert.False(t, res.OwnershipTransferred)
}

func TestSell_NonPositiveQuantity_RejectedBeforeLedgerCall(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "100.00")

	callsBefore := len(gw.calls)
	_, err := svc.Sell(context.Background(), SellRequest{
		AssetID:          assetID,
		QuantityKg:       kg("-10.00"),
		Seller:           "0.0.1001",
		SellerSigningKey: "key-A",
		Buyer:            "0.0.2002",
		BuyerSigningKey:  "key-B",
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, callsBefore, len(gw.calls), "validation must reject before any ledger call")
}

func TestSell_SellerNotOwner_Rejected(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "100.00")

	_, err := svc.Sell(context.Background(), SellRequest{
		AssetID:          assetID,
		QuantityKg:       kg("10.00"),
		Seller:           "0.0.3003",
		SellerSigningKey: "key-X",
		Buyer:            "0.0.2002",
		BuyerSigningKey:  "key-B",
	})
	require.Error(t, err)
	assert.True(t, IsAuthorization(err))
}

func TestSell_BuyerAssociationFatalError_AbortsBeforeTransfer(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "100.00")

	gw.associateErr["0.0.2002"] = errors.New("account frozen")
	_, err := svc.Sell(context.Background(), SellRequest{
		AssetID:          assetID,
		QuantityKg:       kg("10.00"),
		Seller:           "0.0.1001",
		SellerSigningKey: "key-A",
		Buyer:            "0.0.2002",
		BuyerSigningKey:  "key-B",
	})
	require.Error(t, err)

	// No funds moved.
	balances, _ := svc.Balances(assetID)
	assert.True(t, balances["0.0.1001"].Equal(kg("100.00")))
	assert.True(t, balances["0.0.2002"].IsZero())
}

// --- Associate ---

func TestAssociate_IdempotentForCaller(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "100.00")

	first, err := svc.Associate(context.Background(), assetID, "0.0.2002", "key-B")
	require.NoError(t, err)
	assert.False(t, first.AlreadyAssociated)

	second, err := svc.Associate(context.Background(), assetID, "0.0.2002", "key-B")
	require.NoError(t, err, "associating an already-associated pair must succeed")
	assert.True(t, second.AlreadyAssociated)
}

// --- Owned-assets lookup ---

func TestOwnedStocks_DiscoversHolderBalance(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "100.00")

	holdings, err := svc.OwnedStocks(context.Background(), "0.0.1001")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, assetID, holdings[0].AssetID)
	assert.True(t, holdings[0].QuantityKg.Equal(kg("100.00")))
	assert.True(t, holdings[0].IsOwner)
}

// --- Metadata ---

func TestUpdateMetadata_MergesWithoutTouchingOwnership(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, false)
	assetID := sellFixture(t, gw, svc, "100.00")

	rec, err := svc.UpdateMetadata(assetID, map[string]string{"harvest": "2026", "grade": "A"})
	require.NoError(t, err)
	assert.Equal(t, "2026", rec.Attributes["harvest"])
	assert.Equal(t, "A", rec.Attributes["grade"])

	own, _ := svc.Ownership(assetID)
	assert.Equal(t, "0.0.1001", own.Owner)
}
