package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jon4hz/bookshelf/internal/database"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is an in-memory implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	users      map[string]*database.User
	nextUserID uint
	nextSeq    uint

	// Error simulation
	FindUserByEmailError  error
	InsertUserError       error
	UpdateBooksError      error
	ReferencedImagesError error
	MigrateError          error

	// Calls counts calls by method name.
	Calls map[string]int
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	return &MockDB{
		users:      make(map[string]*database.User),
		nextUserID: 1,
		nextSeq:    1,
		Calls:      make(map[string]int),
	}
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = make(map[string]*database.User)
	m.nextUserID = 1
	m.nextSeq = 1
	m.Calls = make(map[string]int)

	m.FindUserByEmailError = nil
	m.InsertUserError = nil
	m.UpdateBooksError = nil
	m.ReferencedImagesError = nil
	m.MigrateError = nil
}

// CallCount returns how often the named method was called.
func (m *MockDB) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[method]
}

// UserCount returns the number of stored users.
func (m *MockDB) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *MockDB) FindUserByEmail(_ context.Context, email string) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["FindUserByEmail"]++

	if m.FindUserByEmailError != nil {
		return nil, m.FindUserByEmailError
	}

	user, ok := m.users[database.NormalizeEmail(email)]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (m *MockDB) InsertUser(_ context.Context, user *database.User) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["InsertUser"]++

	if m.InsertUserError != nil {
		return nil, m.InsertUserError
	}

	email := database.NormalizeEmail(user.Email)
	if _, exists := m.users[email]; exists {
		return nil, database.ErrDuplicateEmail
	}

	u := cloneUser(user)
	u.ID = m.nextUserID
	m.nextUserID++
	u.Email = email
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	for i := range u.Books {
		u.Books[i].Seq = m.nextSeq
		u.Books[i].UserID = u.ID
		m.nextSeq++
	}
	m.users[email] = u

	return cloneUser(u), nil
}

func (m *MockDB) UpdateBooks(_ context.Context, email string, mutation database.BookMutation) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["UpdateBooks"]++

	if m.UpdateBooksError != nil {
		return nil, m.UpdateBooksError
	}

	user, ok := m.users[database.NormalizeEmail(email)]
	if !ok {
		return nil, database.ErrUserNotFound
	}

	switch mut := mutation.(type) {
	case database.AppendBook:
		book := mut.Book
		book.Seq = m.nextSeq
		book.UserID = user.ID
		m.nextSeq++
		user.Books = append(user.Books, book)

	case database.ReplaceBook:
		idx := slices.IndexFunc(user.Books, func(b database.Book) bool { return b.ID == mut.ID })
		if idx < 0 {
			return nil, database.ErrBookNotFound
		}
		user.Books[idx].BookFields = mut.Fields

	case database.RemoveBook:
		user.Books = slices.DeleteFunc(user.Books, func(b database.Book) bool { return b.ID == mut.ID })
	}

	user.UpdatedAt = time.Now()
	return cloneUser(user), nil
}

func (m *MockDB) ReferencedImages(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ReferencedImagesError != nil {
		return nil, m.ReferencedImagesError
	}

	var images []string
	for _, user := range m.users {
		for _, book := range user.Books {
			if book.Img != "" && !slices.Contains(images, book.Img) {
				images = append(images, book.Img)
			}
		}
	}
	return images, nil
}

func (m *MockDB) Migrate(_ context.Context) error {
	return m.MigrateError
}

func (m *MockDB) Close() error {
	return nil
}

func cloneUser(u *database.User) *database.User {
	c := *u
	c.Books = make([]database.Book, len(u.Books))
	copy(c.Books, u.Books)
	return &c
}
