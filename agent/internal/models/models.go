package models

import "time"

// Message is the part of an inbound channel post the pipeline cares about.
type Message struct {
	ChatID     int64
	MessageID  int
	Text       string
	EntityURLs []string   // URLs hidden behind text_link entities
	ButtonURLs [][]string // inline keyboard rows, one URL per button (empty if none)
	ReceivedAt time.Time
}

// NormalizedMarketRecord is the merged view of a mint across data providers.
// Optional metrics are nil when no provider reported them.
type NormalizedMarketRecord struct {
	Mint                 string
	MarketCap            float64
	LiquidityUSD         float64
	Volume5m             float64
	VolumeChangeFraction float64
	HasEnhancedListing   bool
	IsNew                bool
	AgeMinutes           *float64
	PriceChange5m        *float64
	PriceChange1h        *float64
	HolderCount          *int
	TopHolderFraction    *float64
	PairAddress          string
	DexID                string
	Sources              []string
	ObservedAt           time.Time
}

// HasData reports whether the record carries a non-zero cap or liquidity.
// An all-zero record is equivalent to no record at all.
func (r *NormalizedMarketRecord) HasData() bool {
	return r != nil && (r.MarketCap > 0 || r.LiquidityUSD > 0)
}

// EntryState is the lifecycle state of a watchlist entry.
type EntryState string

const (
	StatePending EntryState = "PENDING"
	StateSent    EntryState = "SENT"
	StateExpired EntryState = "EXPIRED"
)

// Terminal reports whether no further transition is allowed.
func (s EntryState) Terminal() bool {
	return s == StateSent || s == StateExpired
}

// WatchlistEntry is a candidate awaiting momentum confirmation.
type WatchlistEntry struct {
	Mint              string     `json:"mint"`
	BaselineMarketCap float64    `json:"launch_mcap"`
	PreviousMarketCap float64    `json:"prev_mcap"`
	AddedAt           time.Time  `json:"added_at"`
	NextPollAt        time.Time  `json:"next_check_at"`
	Sent              bool       `json:"sent"`
	LastVolume        float64    `json:"last_volume"`
	State             EntryState `json:"state"`
}

// WatchlistRow is the postgres representation of a WatchlistEntry.
type WatchlistRow struct {
	Mint              string    `gorm:"primaryKey;size:64"`
	BaselineMarketCap float64   `gorm:"not null"`
	PreviousMarketCap float64   `gorm:"not null"`
	AddedAt           time.Time `gorm:"not null"`
	NextPollAt        time.Time `gorm:"not null"`
	Sent              bool      `gorm:"not null;default:false"`
	LastVolume        float64   `gorm:"not null;default:0"`
	State             string    `gorm:"size:16;not null"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (WatchlistRow) TableName() string { return "watchlist_entries" }

// SeenMint records a mint that has already fired an alert.
type SeenMint struct {
	Mint    string    `gorm:"primaryKey;size:64"`
	FiredAt time.Time `gorm:"autoCreateTime"`
}

func (SeenMint) TableName() string { return "seen_mints" }

// ToRow converts an entry for storage.
func (e WatchlistEntry) ToRow() WatchlistRow {
	return WatchlistRow{
		Mint:              e.Mint,
		BaselineMarketCap: e.BaselineMarketCap,
		PreviousMarketCap: e.PreviousMarketCap,
		AddedAt:           e.AddedAt,
		NextPollAt:        e.NextPollAt,
		Sent:              e.Sent,
		LastVolume:        e.LastVolume,
		State:             string(e.State),
	}
}

// ToEntry converts a stored row back into an entry.
func (r WatchlistRow) ToEntry() WatchlistEntry {
	return WatchlistEntry{
		Mint:              r.Mint,
		BaselineMarketCap: r.BaselineMarketCap,
		PreviousMarketCap: r.PreviousMarketCap,
		AddedAt:           r.AddedAt,
		NextPollAt:        r.NextPollAt,
		Sent:              r.Sent,
		LastVolume:        r.LastVolume,
		State:             EntryState(r.State),
	}
}
