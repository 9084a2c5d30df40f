package models

import "time"

type User struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	SecretKey    string     `json:"-"`
	SecretCode   *string    `json:"-"`
	CodeSentAt   *time.Time `json:"-"`
	ConfirmedAt  *time.Time `json:"-"`
	Active       bool       `json:"-"`
	CreatedAt    time.Time  `json:"date_created"`
	UpdatedAt    time.Time  `json:"date_modified"`
}

// Card is a node of a user's card forest. ChildCards and Todos hold the ids
// of the direct children and attached todos when the card is read back.
type Card struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Note         *string   `json:"note"`
	ParentCardID *int64    `json:"parent_card_id"`
	OwnerID      int64     `json:"owner_id"`
	ChildCards   []int64   `json:"child_cards"`
	Todos        []int64   `json:"todos"`
	CreatedAt    time.Time `json:"date_created"`
	UpdatedAt    time.Time `json:"date_modified"`
}

// CardFeed is a card with its whole subtree and todos inlined.
type CardFeed struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Note         *string    `json:"note"`
	ParentCardID *int64     `json:"parent_card_id"`
	OwnerID      int64      `json:"owner_id"`
	ChildCards   []CardFeed `json:"child_cards"`
	Todos        []Todo     `json:"todos"`
	CreatedAt    time.Time  `json:"date_created"`
	UpdatedAt    time.Time  `json:"date_modified"`
}

type Todo struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Note        *string    `json:"note"`
	DueDate     *time.Time `json:"due_date"`
	Notified    bool       `json:"-"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CardID      *int64     `json:"card_id"`
	OwnerID     int64      `json:"owner_id"`
	CreatedAt   time.Time  `json:"date_created"`
	UpdatedAt   time.Time  `json:"date_modified"`
}

// Complete marks the todo done. CompletedAt is only stamped on the
// transition from incomplete to complete.
func (t *Todo) Complete(now time.Time) bool {
	if t.Completed {
		return false
	}
	t.Completed = true
	t.CompletedAt = &now
	return true
}

// IsDelayed reports whether the todo is still open past its due date.
func (t *Todo) IsDelayed(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}
