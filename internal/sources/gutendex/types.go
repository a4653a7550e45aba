package gutendex

import "github.com/agentstation/shelf/pkg/records"

// Response structures for the Gutendex books endpoint.
type booksResponse struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Book  `json:"results"`
}

// Book is one Gutendex result.
type Book struct {
	ID          records.ID        `json:"id"`
	Title       string            `json:"title"`
	Authors     []Person          `json:"authors"`
	Formats     map[string]string `json:"formats"`
	Bookshelves []string          `json:"bookshelves"`
	Subjects    []string          `json:"subjects"`
	Summaries   []string          `json:"summaries"`
}

// Person is a Gutendex author.
type Person struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year"`
	DeathYear *int   `json:"death_year"`
}
