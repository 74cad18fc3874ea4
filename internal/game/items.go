package game

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by an [ItemStore].
var (
	ErrItemExists        = errors.New("game: item already registered")
	ErrItemNotFound      = errors.New("game: no such item")
	ErrItemOwned         = errors.New("game: item already owned")
	ErrItemNotOwned      = errors.New("game: item not owned")
	ErrInsufficientFunds = errors.New("game: not enough crumbs")
)

// ItemKind is the character slot a cosmetic item occupies. A player has at
// most one enabled item per kind.
type ItemKind string

const (
	KindAccessory     ItemKind = "accessories"
	KindBackground    ItemKind = "backgrounds"
	KindBase          ItemKind = "bb_base"
	KindDualHands     ItemKind = "dual_hands"
	KindEffect        ItemKind = "effects"
	KindEyes          ItemKind = "eyes"
	KindFaceFurniture ItemKind = "face_furniture"
	KindFacialHair    ItemKind = "facial_hair"
	KindHat           ItemKind = "hats"
	KindLeftHand      ItemKind = "left_hands"
	KindMouth         ItemKind = "mouths"
	KindRightHand     ItemKind = "right_hands"
)

// ItemKinds lists every kind in layering order, bottom first.
var ItemKinds = []ItemKind{
	KindBackground, KindBase, KindEyes, KindMouth, KindFacialHair, KindFaceFurniture,
	KindHat, KindLeftHand, KindRightHand, KindDualHands, KindAccessory, KindEffect,
}

// ParseItemKind accepts a kind name case-insensitively.
func ParseItemKind(s string) (ItemKind, error) {
	k := ItemKind(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ItemKinds {
		if v == k {
			return v, nil
		}
	}
	return "", fmt.Errorf("game: unknown item kind %q", s)
}

// Item is a cosmetic item registered for sale.
type Item struct {
	// Name is unique among registered items.
	Name string
	Kind ItemKind
	// Price is in crumbs.
	Price int
	// ImageName is the layer image file, unique among registered items.
	ImageName string

	// MessageID and Emoji optionally point at the shop message and reaction
	// the item is advertised with.
	MessageID string
	Emoji     string
}

// Validate reports the first invalid field of it.
func (it Item) Validate() error {
	switch {
	case strings.TrimSpace(it.Name) == "":
		return errors.New("game: item name is empty")
	case len(it.Name) > 30:
		return fmt.Errorf("game: item name %q is longer than 30 characters", it.Name)
	case strings.TrimSpace(it.ImageName) == "":
		return errors.New("game: item image name is empty")
	case it.Price < 0:
		return fmt.Errorf("game: item price %d is negative", it.Price)
	}
	_, err := ParseItemKind(string(it.Kind))
	return err
}

// OwnedItem is an item in a player's inventory.
type OwnedItem struct {
	UserID    string
	Name      string
	Kind      ItemKind
	ImageName string
	Enabled   bool
}
