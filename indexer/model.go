package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OfferStatus is the lifecycle position of an indexed offer.
type OfferStatus string

const (
	StatusOpen      OfferStatus = "OPEN"
	StatusExchanged OfferStatus = "EXCHANGED"
	StatusCancelled OfferStatus = "CANCELLED"
)

// Offer is one escrow or room offer as seen through committed events. Amounts
// are decimal strings so values above MaxInt64 survive every driver.
type Offer struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Identifier        string      `gorm:"index" json:"identifier"`
	Record            string      `gorm:"index" json:"record"`
	Variant           string      `gorm:"index" json:"variant"`
	Status            OfferStatus `gorm:"index" json:"status"`
	Initializer       string      `gorm:"index" json:"initializer"`
	Taker             string      `json:"taker,omitempty"`
	Mint              string      `json:"mint"`
	Vault             string      `json:"vault"`
	CollectibleMint   string      `json:"collectibleMint,omitempty"`
	InitializerAmount string      `json:"initializerAmount"`
	TakerAmount       string      `json:"takerAmount"`
	Lucky             bool        `json:"lucky"`
	Draw              *string     `json:"draw,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
	ClosedAt          *time.Time  `json:"closedAt,omitempty"`
}

// BeforeCreate assigns a random primary key when none is set.
func (o *Offer) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// AutoMigrate creates or updates the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Offer{})
}
