// Package catalog holds the fixed content of the practice app: the vocabulary
// flashcards, the mission map and the clinical progress panel.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Flashcard is a single multiple-choice vocabulary exercise.
type Flashcard struct {
	ID           int      `json:"id"`
	Glyph        string   `json:"glyph"`
	CorrectLabel string   `json:"-"`
	Choices      []string `json:"choices"`
	Hint         string   `json:"hint"`
}

var (
	ErrEmptyCatalog = errors.New("catalog has no flashcards")
	ErrInvalidCard  = errors.New("invalid flashcard")
)

// Catalog is an ordered, read-only sequence of flashcards.
type Catalog struct {
	cards []Flashcard
}

// New validates cards and returns a catalog that owns a private copy of them.
// Every card needs a unique ID, a non-empty label and a choice list that
// contains the label exactly once.
func New(cards []Flashcard) (*Catalog, error) {
	if len(cards) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[int]bool, len(cards))
	owned := make([]Flashcard, 0, len(cards))
	for i, c := range cards {
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate id %d at position %d", ErrInvalidCard, c.ID, i)
		}
		seen[c.ID] = true

		if strings.TrimSpace(c.CorrectLabel) == "" {
			return nil, fmt.Errorf("%w: card %d has no label", ErrInvalidCard, c.ID)
		}

		n := 0
		for _, choice := range c.Choices {
			if choice == c.CorrectLabel {
				n++
			}
		}
		if n != 1 {
			return nil, fmt.Errorf("%w: card %d lists its label %d times among choices", ErrInvalidCard, c.ID, n)
		}

		c.Choices = slices.Clone(c.Choices)
		owned = append(owned, c)
	}

	return &Catalog{cards: owned}, nil
}

// Len returns the number of flashcards.
func (c *Catalog) Len() int {
	return len(c.cards)
}

// At returns the card at position i. The returned value shares nothing with
// the catalog, so callers may modify it freely.
func (c *Catalog) At(i int) (Flashcard, bool) {
	if i < 0 || i >= len(c.cards) {
		return Flashcard{}, false
	}
	card := c.cards[i]
	card.Choices = slices.Clone(card.Choices)
	return card, true
}

// Cards returns a copy of every flashcard in order.
func (c *Catalog) Cards() []Flashcard {
	out := make([]Flashcard, len(c.cards))
	for i := range c.cards {
		out[i], _ = c.At(i)
	}
	return out
}

// HasChoice reports whether choice is one of the options offered for card i.
func (c *Catalog) HasChoice(i int, choice string) bool {
	if i < 0 || i >= len(c.cards) {
		return false
	}
	return slices.Contains(c.cards[i].Choices, choice)
}

// Default returns the catalog used by the "Selva de los Sonidos" mission.
func Default() *Catalog {
	c, err := New(defaultCards)
	if err != nil {
		panic(fmt.Sprintf("catalog: default cards are invalid: %v", err))
	}
	return c
}

var defaultCards = []Flashcard{
	{
		ID:           1,
		Glyph:        "🥑",
		CorrectLabel: "El Aguacate",
		Choices:      []string{"La Manzana", "El Aguacate", "El Tomate"},
		Hint:         "¿Qué es esto? Es verde por dentro y se usa para hacer guacamole.",
	},
	{
		ID:           2,
		Glyph:        "🌽",
		CorrectLabel: "El Elote",
		Choices:      []string{"El Elote", "La Zanahoria", "El Pepino"},
		Hint:         "¿Qué es esto? Es amarillo y se come en las ferias con mayonesa y chile.",
	},
	{
		ID:           3,
		Glyph:        "🦎",
		CorrectLabel: "El Ajolote",
		Choices:      []string{"La Rana", "El Ajolote", "El Pez"},
		Hint:         "¿Qué es esto? Es un animalito mexicano que vive en el agua y tiene branquias.",
	},
	{
		ID:           4,
		Glyph:        "🌮",
		CorrectLabel: "El Taco",
		Choices:      []string{"La Torta", "El Taco", "El Burrito"},
		Hint:         "¿Qué es esto? Es una tortilla doblada con carne y salsa.",
	},
	{
		ID:           5,
		Glyph:        "🍫",
		CorrectLabel: "El Chocolate",
		Choices:      []string{"El Café", "El Chocolate", "La Leche"},
		Hint:         "¿Qué es esto? Es dulce, de color café, y México es famoso por hacerlo.",
	},
}
