package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/dictee/internal/game"
)

// RegisterItem implements [game.ItemStore].
func (s *Store) RegisterItem(ctx context.Context, it game.Item) error {
	const query = `
		INSERT INTO registered_items (image_name, item_name, item_type, item_price, message_ref, reaction_ref)
		VALUES ($1, $2, $3, $4, $5, $6)`

	err := s.call(ctx, "register_item", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, query, it.ImageName, it.Name, string(it.Kind), it.Price, it.MessageID, it.Emoji)
		return err
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("postgres: register item %q: %w", it.Name, game.ErrItemExists)
		}
		return fmt.Errorf("postgres: register item %q: %w", it.Name, err)
	}
	return nil
}

// Items implements [game.ItemStore].
func (s *Store) Items(ctx context.Context) ([]game.Item, error) {
	const query = `
		SELECT item_name, item_type, item_price, image_name, message_ref, reaction_ref
		FROM registered_items
		ORDER BY item_type, item_name`

	var out []game.Item
	err := s.call(ctx, "items", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			it, err := scanItem(rows)
			if err != nil {
				return err
			}
			out = append(out, it)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list items: %w", err)
	}
	return out, nil
}

// Inventory implements [game.ItemStore].
func (s *Store) Inventory(ctx context.Context, userID string) ([]game.OwnedItem, error) {
	const query = `
		SELECT u.user_id, r.item_name, r.item_type, r.image_name, u.enabled
		FROM user_items u
		JOIN registered_items r USING (item_name)
		WHERE u.user_id = $1
		ORDER BY r.item_type, r.item_name`

	var out []game.OwnedItem
	err := s.call(ctx, "inventory", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				o    game.OwnedItem
				kind string
			)
			if err := rows.Scan(&o.UserID, &o.Name, &kind, &o.ImageName, &o.Enabled); err != nil {
				return err
			}
			o.Kind = game.ItemKind(kind)
			out = append(out, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: inventory of %q: %w", userID, err)
	}
	return out, nil
}

// BuyItem implements [game.ItemStore]. The debit and the inventory insert
// are one statement; when it matches nothing a second query finds out why.
func (s *Store) BuyItem(ctx context.Context, userID, name string) (game.Item, error) {
	const query = `
		WITH item AS (
			SELECT item_name, item_type, item_price, image_name, message_ref, reaction_ref
			FROM registered_items
			WHERE item_name = $2
		), paid AS (
			UPDATE profiles p SET money = p.money - item.item_price
			FROM item
			WHERE p.user_id = $1
			  AND p.money >= item.item_price
			  AND NOT EXISTS (SELECT 1 FROM user_items WHERE user_id = $1 AND item_name = $2)
			RETURNING p.user_id
		), owned AS (
			INSERT INTO user_items (user_id, item_name, enabled)
			SELECT paid.user_id, item.item_name, FALSE FROM paid, item
			RETURNING item_name
		)
		SELECT item.item_name, item.item_type, item.item_price, item.image_name, item.message_ref, item.reaction_ref
		FROM item JOIN owned USING (item_name)`

	var (
		it     game.Item
		bought = true
	)
	err := s.call(ctx, "buy_item", func(ctx context.Context) error {
		var err error
		it, err = scanItem(s.db.QueryRow(ctx, query, userID, name))
		if errors.Is(err, pgx.ErrNoRows) {
			bought = false
			return nil
		}
		return err
	})
	switch {
	case isDuplicateKeyError(err):
		return game.Item{}, fmt.Errorf("postgres: buy item %q: %w", name, game.ErrItemOwned)
	case err != nil:
		return game.Item{}, fmt.Errorf("postgres: buy item %q: %w", name, err)
	case bought:
		return it, nil
	}
	return game.Item{}, s.whyNotBought(ctx, userID, name)
}

func (s *Store) whyNotBought(ctx context.Context, userID, name string) error {
	const query = `
		SELECT
			EXISTS (SELECT 1 FROM registered_items WHERE item_name = $2),
			EXISTS (SELECT 1 FROM user_items WHERE user_id = $1 AND item_name = $2)`

	var registered, owned bool
	err := s.call(ctx, "buy_item_check", func(ctx context.Context) error {
		return s.db.QueryRow(ctx, query, userID, name).Scan(&registered, &owned)
	})
	switch {
	case err != nil:
		return fmt.Errorf("postgres: buy item %q: %w", name, err)
	case !registered:
		return fmt.Errorf("postgres: buy item %q: %w", name, game.ErrItemNotFound)
	case owned:
		return fmt.Errorf("postgres: buy item %q: %w", name, game.ErrItemOwned)
	}
	return fmt.Errorf("postgres: buy item %q: %w", name, game.ErrInsufficientFunds)
}

// EquipItem implements [game.ItemStore].
func (s *Store) EquipItem(ctx context.Context, userID, name string) error {
	const query = `
		WITH target AS (
			SELECT r.item_type
			FROM user_items u
			JOIN registered_items r USING (item_name)
			WHERE u.user_id = $1 AND u.item_name = $2
		)
		UPDATE user_items u SET enabled = (u.item_name = $2)
		FROM registered_items r, target
		WHERE u.user_id = $1
		  AND r.item_name = u.item_name
		  AND r.item_type = target.item_type`

	var rows int64
	err := s.call(ctx, "equip_item", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, query, userID, name)
		rows = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: equip item %q: %w", name, err)
	}
	if rows == 0 {
		return fmt.Errorf("postgres: equip item %q: %w", name, game.ErrItemNotOwned)
	}
	return nil
}

func scanItem(row pgx.Row) (game.Item, error) {
	var (
		it   game.Item
		kind string
	)
	if err := row.Scan(&it.Name, &kind, &it.Price, &it.ImageName, &it.MessageID, &it.Emoji); err != nil {
		return game.Item{}, err
	}
	it.Kind = game.ItemKind(kind)
	return it, nil
}
