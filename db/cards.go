package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rdolist/cardtree"
	"rdolist/models"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const cardColumns = "id, title, note, parent_card_id, owner_id, created_at, updated_at"

func scanCard(row scanner) (models.Card, error) {
	var c models.Card
	err := row.Scan(&c.ID, &c.Title, &c.Note, &c.ParentCardID, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) CreateCard(ctx context.Context, c *models.Card) error {
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (title, note, parent_card_id, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Title, c.Note, c.ParentCardID, c.OwnerID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	c.ChildCards, c.Todos = []int64{}, []int64{}
	return nil
}

// Card loads one card along with the ids of its direct children and todos.
func (s *Store) Card(ctx context.Context, id int64) (*models.Card, error) {
	c, err := scanCard(s.db.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	if c.ChildCards, err = s.ids(ctx, "SELECT id FROM cards WHERE parent_card_id = ? ORDER BY id", id); err != nil {
		return nil, err
	}
	if c.Todos, err = s.ids(ctx, "SELECT id FROM todos WHERE card_id = ? ORDER BY id", id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CardsByOwner returns the flat list of the owner's cards without child or
// todo ids.
func (s *Store) CardsByOwner(ctx context.Context, ownerID int64) ([]models.Card, error) {
	return s.ownerCards(ctx, s.db, ownerID, false)
}

func (s *Store) ownerCards(ctx context.Context, q querier, ownerID int64, lock bool) ([]models.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE owner_id = ? ORDER BY id"
	if lock && s.driver == MySQL {
		query += " FOR UPDATE"
	}
	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load cards of user %d: %w", ownerID, err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// UpdateCard writes the title and note of c.
func (s *Store) UpdateCard(ctx context.Context, c *models.Card) error {
	c.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx, "UPDATE cards SET title = ?, note = ?, updated_at = ? WHERE id = ?",
		c.Title, c.Note, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update card %d: %w", c.ID, err)
	}
	return requireAffected(res)
}

// ChangeParent moves card id below parentID. Both cards must belong to
// ownerID. It reports false without writing anything when parentID lies in
// the subtree of id. The forest is read and written in one transaction.
func (s *Store) ChangeParent(ctx context.Context, ownerID, id, parentID int64) (bool, error) {
	moved := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cards, err := s.ownerCards(ctx, tx, ownerID, true)
		if err != nil {
			return err
		}
		forest := cardtree.New(cards)
		if !forest.Has(id) || !forest.Has(parentID) {
			return ErrNotFound
		}
		if !forest.Reparent(id, parentID) {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "UPDATE cards SET parent_card_id = ?, updated_at = ? WHERE id = ?",
			parentID, s.now(), id); err != nil {
			return fmt.Errorf("reparent card %d: %w", id, err)
		}
		moved = true
		return nil
	})
	return moved, err
}

// DeleteCard removes the card, every descendant card and every todo
// attached to any of them.
func (s *Store) DeleteCard(ctx context.Context, ownerID, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cards, err := s.ownerCards(ctx, tx, ownerID, true)
		if err != nil {
			return err
		}
		forest := cardtree.New(cards)
		if !forest.Has(id) {
			return ErrNotFound
		}
		levels := forest.Levels(id)

		var all []int64
		for _, level := range levels {
			all = append(all, level...)
		}
		query, args := inClause("DELETE FROM todos WHERE card_id IN", all)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete todos below card %d: %w", id, err)
		}
		return deleteLevels(ctx, tx, levels)
	})
}

func deleteLevels(ctx context.Context, tx *sql.Tx, levels [][]int64) error {
	for i := len(levels) - 1; i >= 0; i-- {
		query, args := inClause("DELETE FROM cards WHERE id IN", levels[i])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete cards: %w", err)
		}
	}
	return nil
}

func inClause(prefix string, ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return prefix + " (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}

// RootFeeds returns every parentless card of the owner with its subtree.
func (s *Store) RootFeeds(ctx context.Context, ownerID int64) ([]models.CardFeed, error) {
	forest, cards, todos, err := s.feedData(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	feeds := []models.CardFeed{}
	for _, id := range forest.Roots() {
		feeds = append(feeds, cardtree.Feed(forest, cards, todos, id))
	}
	return feeds, nil
}

// CardFeed returns the card with its whole subtree and todos inlined.
func (s *Store) CardFeed(ctx context.Context, ownerID, id int64) (models.CardFeed, error) {
	forest, cards, todos, err := s.feedData(ctx, ownerID)
	if err != nil {
		return models.CardFeed{}, err
	}
	if !forest.Has(id) {
		return models.CardFeed{}, ErrNotFound
	}
	return cardtree.Feed(forest, cards, todos, id), nil
}

func (s *Store) feedData(ctx context.Context, ownerID int64) (*cardtree.Forest, map[int64]models.Card, map[int64][]models.Todo, error) {
	list, err := s.CardsByOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, err
	}
	cards := make(map[int64]models.Card, len(list))
	for _, c := range list {
		cards[c.ID] = c
	}
	owned, err := s.Todos(ctx, ownerID, nil, models.StateAll)
	if err != nil {
		return nil, nil, nil, err
	}
	todos := make(map[int64][]models.Todo)
	for _, t := range owned {
		if t.CardID != nil {
			todos[*t.CardID] = append(todos[*t.CardID], t)
		}
	}
	return cardtree.New(list), cards, todos, nil
}
