package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/dictee/internal/game"
)

func TestRegisterItem(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	s := New(db)
	hat := game.Item{Name: "Beret", Kind: game.KindHat, Price: 250, ImageName: "beret.png", Emoji: "🎨"}
	if err := s.RegisterItem(t.Context(), hat); err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	args := db.execs[0].args
	if args[0] != "beret.png" || args[1] != "Beret" || args[2] != "hats" || args[3] != 250 || args[5] != "🎨" {
		t.Errorf("args = %v", args)
	}

	db.execErr = uniqueViolation
	if err := s.RegisterItem(t.Context(), hat); !errors.Is(err, game.ErrItemExists) {
		t.Errorf("duplicate: err = %v, want ErrItemExists", err)
	}
}

func TestItemsAndInventory(t *testing.T) {
	t.Parallel()

	db := &mockDB{rows: &mockRows{data: [][]any{
		{"Beret", "hats", 250, "beret.png", "", ""},
		{"Monocle", "face_furniture", 400, "monocle.png", "123", "🧐"},
	}}}
	items, err := New(db).Items(t.Context())
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 || items[0].Kind != game.KindHat || items[1].MessageID != "123" || items[1].Price != 400 {
		t.Errorf("Items = %+v", items)
	}

	db = &mockDB{rows: &mockRows{data: [][]any{
		{"u1", "Beret", "hats", "beret.png", true},
		{"u1", "Cap", "hats", "cap.png", false},
	}}}
	inv, err := New(db).Inventory(t.Context(), "u1")
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if len(inv) != 2 || !inv[0].Enabled || inv[1].Enabled || inv[1].ImageName != "cap.png" {
		t.Errorf("Inventory = %+v", inv)
	}
	if db.queries[0].args[0] != "u1" {
		t.Errorf("inventory args = %v", db.queries[0].args)
	}
}

func TestBuyItem(t *testing.T) {
	t.Parallel()

	bought := &mockRow{values: []any{"Beret", "hats", 250, "beret.png", "", ""}}
	tests := []struct {
		name    string
		queue   []*mockRow
		wantErr error
		checks  int
	}{
		{name: "bought", queue: []*mockRow{bought}},
		{
			name:    "not registered",
			queue:   []*mockRow{{err: pgx.ErrNoRows}, {values: []any{false, false}}},
			wantErr: game.ErrItemNotFound,
			checks:  1,
		},
		{
			name:    "already owned",
			queue:   []*mockRow{{err: pgx.ErrNoRows}, {values: []any{true, true}}},
			wantErr: game.ErrItemOwned,
			checks:  1,
		},
		{
			name:    "too poor",
			queue:   []*mockRow{{err: pgx.ErrNoRows}, {values: []any{true, false}}},
			wantErr: game.ErrInsufficientFunds,
			checks:  1,
		},
		{
			name:    "concurrent purchase",
			queue:   []*mockRow{{err: uniqueViolation}},
			wantErr: game.ErrItemOwned,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := &mockDB{rowQueue: tt.queue}
			it, err := New(db).BuyItem(t.Context(), "u1", "Beret")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (it.Name != "Beret" || it.Price != 250) {
				t.Errorf("item = %+v", it)
			}
			if got := len(db.queries) - 1; got != tt.checks {
				t.Errorf("follow-up queries = %d, want %d", got, tt.checks)
			}
			buy := db.queries[0]
			if !strings.Contains(buy.sql, "UPDATE profiles") || !strings.Contains(buy.sql, "INSERT INTO user_items") {
				t.Errorf("debit and insert are not one statement: %s", buy.sql)
			}
			if buy.args[0] != "u1" || buy.args[1] != "Beret" {
				t.Errorf("args = %v", buy.args)
			}
		})
	}
}

func TestEquipItem(t *testing.T) {
	t.Parallel()

	db := &mockDB{tag: pgconn.NewCommandTag("UPDATE 3")}
	s := New(db)
	if err := s.EquipItem(t.Context(), "u1", "Beret"); err != nil {
		t.Fatalf("EquipItem: %v", err)
	}
	if !strings.Contains(db.execs[0].sql, "enabled = (u.item_name = $2)") {
		t.Errorf("query = %s", db.execs[0].sql)
	}

	db.tag = pgconn.NewCommandTag("UPDATE 0")
	if err := s.EquipItem(t.Context(), "u1", "Cap"); !errors.Is(err, game.ErrItemNotOwned) {
		t.Errorf("unowned: err = %v, want ErrItemNotOwned", err)
	}
}
