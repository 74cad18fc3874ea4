package game

import (
	"context"
	"time"
)

// ProfileStore persists player wallets.
type ProfileStore interface {
	// Profile returns the profile of userID, or (nil, nil) if none exists.
	Profile(ctx context.Context, userID string) (*Profile, error)

	// CreateProfile inserts p. It fails if a profile for p.UserID exists.
	CreateProfile(ctx context.Context, p Profile) error

	// CreditProfile adds amount crumbs and gamesPlayed games to userID and
	// sets the last played time.
	CreditProfile(ctx context.Context, userID string, amount, gamesPlayed int, lastPlayed time.Time) error
}

// TallyStore persists the per-player count of won and lost rounds.
type TallyStore interface {
	// RoundTally returns the tally of userID, or (nil, nil) if none exists.
	RoundTally(ctx context.Context, userID string) (*RoundTally, error)

	RecordRoundWin(ctx context.Context, userID string) error
	RecordRoundLoss(ctx context.Context, userID string) error

	// Leaderboard returns up to limit tallies ordered by wins, highest first.
	Leaderboard(ctx context.Context, limit int) ([]RoundTally, error)
}

// CooldownStore persists when a player last heard each asset.
type CooldownStore interface {
	// Cooldowns returns every record of userID for language lang and
	// difficulty d.
	Cooldowns(ctx context.Context, userID string, lang Language, d Difficulty) ([]CooldownRecord, error)

	// RecordAssetPlayed inserts the first record for an asset.
	RecordAssetPlayed(ctx context.Context, rec CooldownRecord) error

	// TouchAssetPlayed moves the timestamp of an existing record.
	TouchAssetPlayed(ctx context.Context, rec CooldownRecord) error
}

// DiceStore persists bonus roll tokens.
type DiceStore interface {
	// RollDice returns the number of tokens userID holds.
	RollDice(ctx context.Context, userID string) (int, error)

	// AddRollDice grants n tokens to userID.
	AddRollDice(ctx context.Context, userID string, n int) error
}

// EventStore reports when a scheduled job last ran, keyed by a label. Runs
// are recorded together with their effect, see [economy.Crediter].
type EventStore interface {
	// LastRun returns the last run of label. ok is false if it never ran.
	LastRun(ctx context.Context, label string) (last time.Time, ok bool, err error)
}

// ItemStore persists the cosmetic item registry and player inventories.
type ItemStore interface {
	// RegisterItem adds it to the registry. It returns [ErrItemExists] when
	// the name or the image is taken.
	RegisterItem(ctx context.Context, it Item) error

	// Items returns every registered item ordered by kind, then name.
	Items(ctx context.Context) ([]Item, error)

	// Inventory returns the items userID owns ordered by kind, then name.
	Inventory(ctx context.Context, userID string) ([]OwnedItem, error)

	// BuyItem debits the price of the named item from userID's profile and
	// adds the item to their inventory, atomically. It returns
	// [ErrItemNotFound], [ErrItemOwned] or [ErrInsufficientFunds]; a player
	// without a profile has no crumbs.
	BuyItem(ctx context.Context, userID, name string) (Item, error)

	// EquipItem enables the named item and disables the other items of the
	// same kind userID owns. It returns [ErrItemNotOwned].
	EquipItem(ctx context.Context, userID, name string) error
}

