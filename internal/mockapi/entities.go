// Package mockapi is an in-memory data source with simulated latency and
// failures. Every operation is context-aware: a cancelled context ends the
// simulated wait and returns the context's error.
//
// A Store is an explicit value. Tests build their own; the CLI shares one
// between invocations through a JSON file (see Open).
package mockapi

import "fmt"

// User is a registered person.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewUser is the payload for CreateUser.
type NewUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Todo is a task that can be toggled.
type Todo struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Product is a catalog entry.
type Product struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

// ProductPatch is a partial update; nil fields are left unchanged.
type ProductPatch struct {
	Name     *string  `json:"name,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Category *string  `json:"category,omitempty"`
}

// Post is a read-only article.
type Post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PostsPage is one page of posts. NextPage is 0 on the last page.
type PostsPage struct {
	Posts      []Post `json:"posts"`
	Page       int    `json:"page"`
	NextPage   int    `json:"next_page,omitempty"`
	TotalPages int    `json:"total_pages"`
}

// HasNext reports whether another page follows.
func (p PostsPage) HasNext() bool { return p.NextPage > 0 }

// Stats summarizes the store's contents.
type Stats struct {
	Users          int    `json:"users"`
	Todos          int    `json:"todos"`
	TodosCompleted int    `json:"todos_completed"`
	Products       int    `json:"products"`
	Posts          int    `json:"posts"`
	Version        uint64 `json:"version"`
}

const (
	// PostsPerPage is the page size of ListPosts.
	PostsPerPage = 5
	// TotalPosts is the number of generated posts.
	TotalPosts = 23
)

// Categories are the accepted product categories.
var Categories = []string{"electronics", "clothing", "books"}

// SeedUsers returns a fresh copy of the user fixtures.
func SeedUsers() []User {
	return []User{
		{ID: 1, Name: "Ana García", Email: "ana@email.com"},
		{ID: 2, Name: "Carlos López", Email: "carlos@email.com"},
	}
}

// SeedTodos returns a fresh copy of the todo fixtures.
func SeedTodos() []Todo {
	return []Todo{
		{ID: 1, Title: "Aprender React Query", Completed: true},
		{ID: 2, Title: "Implementar optimistic updates", Completed: false},
		{ID: 3, Title: "Practicar invalidación", Completed: false},
		{ID: 4, Title: "Dominar TypeScript", Completed: true},
	}
}

// SeedProducts returns a fresh copy of the product fixtures.
func SeedProducts() []Product {
	return []Product{
		{ID: 1, Name: "Laptop", Price: 999, Category: "electronics"},
		{ID: 2, Name: "Mouse", Price: 29, Category: "electronics"},
		{ID: 3, Name: "Camiseta", Price: 25, Category: "clothing"},
		{ID: 4, Name: "Libro React", Price: 45, Category: "books"},
	}
}

var allPosts = func() []Post {
	posts := make([]Post, TotalPosts)
	for i := range posts {
		n := i + 1
		posts[i] = Post{
			ID:    n,
			Title: fmt.Sprintf("Post #%d: Título del artículo", n),
			Body:  fmt.Sprintf("Este es el contenido del post %d. Lorem ipsum dolor sit amet.", n),
		}
	}
	return posts
}()
