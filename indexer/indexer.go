// Package indexer keeps a queryable table of escrow offers built from the
// ledger's committed event stream.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vaultswap/core/events"
	"vaultswap/core/types"
	"vaultswap/native/escrow"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultListLimit = 50
	maxListLimit     = 500
)

var ErrUnknownDriver = errors.New("indexer: unknown driver")

// Open connects to the offer database and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Indexer consumes escrow events and answers offer queries.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(db *gorm.DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, logger: logger.With("component", "indexer"), now: time.Now}
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Failures are logged; the ledger has already
// committed by the time events arrive.
func (ix *Indexer) Emit(evt events.Event) {
	payload := events.Payload(evt)
	if ix == nil || payload == nil {
		return
	}
	if err := ix.Apply(context.Background(), payload); err != nil {
		ix.logger.Error("index event", slog.String("type", payload.Type), slog.Any("error", err))
	}
}

// Apply folds one committed event into the offer table. Events of other
// programs are ignored.
func (ix *Indexer) Apply(ctx context.Context, evt *types.Event) error {
	attrs := evt.Attributes
	switch evt.Type {
	case escrow.EventEscrowCreated, escrow.EventRoomCreated:
		offer := Offer{
			Identifier:        attrs["identifier"],
			Record:            attrs["record"],
			Variant:           escrow.VariantEscrow.String(),
			Status:            StatusOpen,
			Initializer:       attrs["initializer"],
			Mint:              attrs["mint"],
			Vault:             attrs["vault"],
			InitializerAmount: attrs["initializerAmount"],
			TakerAmount:       attrs["takerAmount"],
		}
		if evt.Type == escrow.EventRoomCreated {
			offer.Variant = escrow.VariantRoom.String()
			offer.CollectibleMint = attrs["collectibleMint"]
			offer.Lucky = attrs["lucky"] == "true"
			if draw, ok := attrs["draw"]; ok {
				offer.Draw = &draw
			}
		}
		return ix.db.WithContext(ctx).Create(&offer).Error
	case escrow.EventEscrowExchanged:
		return ix.close(ctx, attrs["record"], StatusExchanged, attrs["taker"])
	case escrow.EventEscrowCancelled:
		return ix.close(ctx, attrs["record"], StatusCancelled, "")
	default:
		return nil
	}
}

// close finalises the newest open offer for a record. Identifiers are
// reusable once closed, so older rows for the same record stay untouched.
func (ix *Indexer) close(ctx context.Context, record string, status OfferStatus, taker string) error {
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offer Offer
		err := tx.Where("record = ? AND status = ?", record, StatusOpen).
			Order("created_at DESC").
			First(&offer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("indexer: no open offer for record %s", record)
		}
		if err != nil {
			return err
		}
		closedAt := ix.now().UTC()
		updates := map[string]any{"status": status, "closed_at": &closedAt}
		if taker != "" {
			updates["taker"] = taker
		}
		return tx.Model(&offer).Updates(updates).Error
	})
}

// Filter narrows ListOffers. Zero values match everything.
type Filter struct {
	Status      OfferStatus `json:"status,omitempty"`
	Variant     string      `json:"variant,omitempty"`
	Initializer string      `json:"initializer,omitempty"`
	Identifier  string      `json:"identifier,omitempty"`
	Limit       int         `json:"limit,omitempty"`
	Offset      int         `json:"offset,omitempty"`
}

// ListOffers returns offers newest first.
func (ix *Indexer) ListOffers(ctx context.Context, f Filter) ([]Offer, error) {
	q := ix.db.WithContext(ctx).Model(&Offer{})
	if f.Status != "" {
		q = q.Where("status = ?", OfferStatus(strings.ToUpper(string(f.Status))))
	}
	if f.Variant != "" {
		q = q.Where("variant = ?", strings.ToLower(f.Variant))
	}
	if f.Initializer != "" {
		q = q.Where("initializer = ?", f.Initializer)
	}
	if f.Identifier != "" {
		q = q.Where("identifier = ?", f.Identifier)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	var offers []Offer
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("indexer: list offers: %w", err)
	}
	return offers, nil
}
