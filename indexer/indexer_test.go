package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vaultswap/core/types"
	"vaultswap/native/escrow"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func created(typ, identifier, record, initializer string) *types.Event {
	attrs := map[string]string{
		"identifier":        identifier,
		"record":            record,
		"initializer":       initializer,
		"mint":              "mint",
		"vault":             "vault",
		"initializerAmount": "50",
		"takerAmount":       "18446744073709551615",
	}
	if typ == escrow.EventRoomCreated {
		attrs["collectibleMint"] = "nft"
		attrs["lucky"] = "true"
		attrs["draw"] = "2"
	}
	return &types.Event{Type: typ, Attributes: attrs}
}

func TestIndexerLifecycle(t *testing.T) {
	ctx := context.Background()
	ix := New(setupTestDB(t), nil)

	ix.Emit(created(escrow.EventEscrowCreated, "offer-1", "rec1", "alice"))
	ix.Emit(created(escrow.EventRoomCreated, "room-1", "rec2", "bob"))

	open, err := ix.ListOffers(ctx, Filter{Status: StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 2)

	rooms, err := ix.ListOffers(ctx, Filter{Variant: "ROOM"})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, "room-1", rooms[0].Identifier)
	require.True(t, rooms[0].Lucky)
	require.NotNil(t, rooms[0].Draw)
	require.Equal(t, "2", *rooms[0].Draw)
	require.Equal(t, "18446744073709551615", rooms[0].TakerAmount)

	require.NoError(t, ix.Apply(ctx, &types.Event{Type: escrow.EventEscrowExchanged, Attributes: map[string]string{
		"record": "rec1", "taker": "carol", "variant": "escrow",
	}}))
	require.NoError(t, ix.Apply(ctx, &types.Event{Type: escrow.EventEscrowCancelled, Attributes: map[string]string{
		"record": "rec2", "variant": "room",
	}}))

	exchanged, err := ix.ListOffers(ctx, Filter{Status: StatusExchanged})
	require.NoError(t, err)
	require.Len(t, exchanged, 1)
	require.Equal(t, "carol", exchanged[0].Taker)
	require.NotNil(t, exchanged[0].ClosedAt)

	cancelled, err := ix.ListOffers(ctx, Filter{Status: "cancelled", Initializer: "bob"})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	require.Empty(t, cancelled[0].Taker)
}

func TestIndexerIdentifierReuse(t *testing.T) {
	ctx := context.Background()
	ix := New(setupTestDB(t), nil)

	require.NoError(t, ix.Apply(ctx, created(escrow.EventEscrowCreated, "offer-1", "rec1", "alice")))
	require.NoError(t, ix.Apply(ctx, &types.Event{Type: escrow.EventEscrowCancelled, Attributes: map[string]string{"record": "rec1"}}))
	require.NoError(t, ix.Apply(ctx, created(escrow.EventEscrowCreated, "offer-1", "rec1", "alice")))

	all, err := ix.ListOffers(ctx, Filter{Identifier: "offer-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)

	open, err := ix.ListOffers(ctx, Filter{Identifier: "offer-1", Status: StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestIndexerCloseWithoutOpenOffer(t *testing.T) {
	ix := New(setupTestDB(t), nil)
	err := ix.Apply(context.Background(), &types.Event{Type: escrow.EventEscrowCancelled, Attributes: map[string]string{"record": "missing"}})
	require.Error(t, err)
}

func TestIndexerIgnoresForeignEvents(t *testing.T) {
	ctx := context.Background()
	ix := New(setupTestDB(t), nil)
	require.NoError(t, ix.Apply(ctx, &types.Event{Type: "token.transfer"}))
	offers, err := ix.ListOffers(ctx, Filter{})
	require.NoError(t, err)
	require.Empty(t, offers)
}

func TestListOffersPaging(t *testing.T) {
	ctx := context.Background()
	ix := New(setupTestDB(t), nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, ix.Apply(ctx, created(escrow.EventEscrowCreated, fmt.Sprintf("offer-%d", i), fmt.Sprintf("rec%d", i), "alice")))
	}
	page, err := ix.ListOffers(ctx, Filter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page, 1)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	require.ErrorIs(t, err, ErrUnknownDriver)

	db, err := Open(DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.True(t, db.Migrator().HasTable(&Offer{}))
}
