// Package seed fills the database with fake users, cards and todos.
package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"rdolist/db"
	"rdolist/models"
)

type Options struct {
	Users int
	Cards int
	// Roots is how many of the cards stay parentless. The rest hang below
	// a root of the same owner.
	Roots int
	Todos int
	// Seed makes a run reproducible when non-zero.
	Seed int64
}

func DefaultOptions() Options {
	return Options{Users: 30, Cards: 60, Roots: 10, Todos: 180}
}

type Result struct {
	Users []models.User
	Cards []models.Card
	Todos []models.Todo
}

// Password is given to every seeded account.
const Password = "Passw0rd"

func Run(ctx context.Context, store *db.Store, opts Options) (*Result, error) {
	if opts.Users < 1 || opts.Roots < 1 || opts.Roots > opts.Cards {
		return nil, fmt.Errorf("seed: need at least one user and 1 <= roots <= cards, got %+v", opts)
	}
	f := gofakeit.New(opts.Seed)
	res := &Result{}

	log.Printf("Seeding: users")
	seen := make(map[string]bool)
	for i := 0; i < opts.Users; i++ {
		email := f.Email()
		for seen[email] {
			email = f.Email()
		}
		seen[email] = true

		u := models.User{
			FirstName: f.FirstName(),
			LastName:  f.LastName(),
			Email:     email,
			Active:    true,
		}
		if err := u.SetPassword(Password); err != nil {
			return nil, err
		}
		confirmed := store.Now().UTC()
		u.ConfirmedAt = &confirmed
		if err := store.CreateUser(ctx, &u); err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
		res.Users = append(res.Users, u)
	}

	log.Printf("Seeding: cards")
	for i := 0; i < opts.Cards; i++ {
		c := models.Card{Title: f.Sentence(4), Note: note(f)}
		if i < opts.Roots {
			c.OwnerID = res.Users[f.Number(0, len(res.Users)-1)].ID
		} else {
			root := res.Cards[f.Number(0, opts.Roots-1)]
			c.OwnerID = root.OwnerID
			c.ParentCardID = &root.ID
		}
		if err := store.CreateCard(ctx, &c); err != nil {
			return nil, fmt.Errorf("seed card: %w", err)
		}
		res.Cards = append(res.Cards, c)
	}

	log.Printf("Seeding: todos")
	for i := 0; i < opts.Todos && len(res.Cards) > 0; i++ {
		card := res.Cards[f.Number(0, len(res.Cards)-1)]
		t := models.Todo{
			Title:   f.Sentence(5),
			Note:    note(f),
			CardID:  &card.ID,
			OwnerID: card.OwnerID,
		}
		if f.Bool() {
			now := store.Now()
			due := f.DateRange(now.AddDate(0, 0, -14), now.AddDate(0, 0, 14)).UTC().Truncate(time.Second)
			t.DueDate = &due
		}
		if err := store.CreateTodo(ctx, &t); err != nil {
			return nil, fmt.Errorf("seed todo: %w", err)
		}
		res.Todos = append(res.Todos, t)
	}
	return res, nil
}

func note(f *gofakeit.Faker) *string {
	n := f.Paragraph(1, 2, 8, " ")
	return &n
}
