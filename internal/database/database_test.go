package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type DatabaseTestSuite struct {
	suite.Suite
	client *Client
	ctx    context.Context
}

func (s *DatabaseTestSuite) SetupTest() {
	client, err := New(filepath.Join(s.T().TempDir(), "data", "bookshelf.db"))
	s.Require().NoError(err)
	s.client = client
	s.ctx = context.Background()
}

func (s *DatabaseTestSuite) TearDownTest() {
	s.NoError(s.client.Close())
}

func (s *DatabaseTestSuite) insertUser(email string) *User {
	u, err := s.client.InsertUser(s.ctx, &User{Email: email, PasswordHash: "hash"})
	s.Require().NoError(err)
	return u
}

func book(id int64, name string) Book {
	return Book{ID: id, BookFields: BookFields{Name: name, Author: "Author"}}
}

func (s *DatabaseTestSuite) TestInsertAndFind() {
	created := s.insertUser("Alice@Example.com ")
	s.NotZero(created.ID)
	s.Equal("alice@example.com", created.Email)
	s.NotNil(created.Books)

	found, err := s.client.FindUserByEmail(s.ctx, "ALICE@example.com")
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
	s.Equal("hash", found.PasswordHash)
	s.Empty(found.Books)
}

func (s *DatabaseTestSuite) TestFindUnknownUser() {
	_, err := s.client.FindUserByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *DatabaseTestSuite) TestInsertDuplicateEmail() {
	s.insertUser("a@b.c")
	_, err := s.client.InsertUser(s.ctx, &User{Email: "A@B.C"})
	s.ErrorIs(err, ErrDuplicateEmail)
}

func (s *DatabaseTestSuite) TestAppendKeepsOrderAndDuplicates() {
	s.insertUser("a@b.c")

	for _, b := range []Book{book(1, "Dune"), book(2, "Emma"), book(1, "Dune again")} {
		_, err := s.client.UpdateBooks(s.ctx, "a@b.c", AppendBook{Book: b})
		s.Require().NoError(err)
	}

	u, err := s.client.FindUserByEmail(s.ctx, "a@b.c")
	s.Require().NoError(err)
	s.Require().Len(u.Books, 3)
	s.Equal("Dune", u.Books[0].Name)
	s.Equal("Emma", u.Books[1].Name)
	s.Equal("Dune again", u.Books[2].Name)
}

func (s *DatabaseTestSuite) TestReplaceFirstMatch() {
	s.insertUser("a@b.c")
	for _, b := range []Book{book(1, "First"), book(1, "Second")} {
		_, err := s.client.UpdateBooks(s.ctx, "a@b.c", AppendBook{Book: b})
		s.Require().NoError(err)
	}

	rating := 4.5
	u, err := s.client.UpdateBooks(s.ctx, "a@b.c", ReplaceBook{
		ID:     1,
		Fields: BookFields{Name: "Replaced", Author: "Other", Rating: &rating},
	})
	s.Require().NoError(err)
	s.Require().Len(u.Books, 2)
	s.Equal("Replaced", u.Books[0].Name)
	s.Equal("Other", u.Books[0].Author)
	s.Require().NotNil(u.Books[0].Rating)
	s.InDelta(4.5, *u.Books[0].Rating, 0.001)
	s.Equal(int64(1), u.Books[0].ID)
	s.Equal("Second", u.Books[1].Name)
}

func (s *DatabaseTestSuite) TestReplaceUnknownBook() {
	s.insertUser("a@b.c")
	_, err := s.client.UpdateBooks(s.ctx, "a@b.c", ReplaceBook{ID: 42, Fields: BookFields{Name: "x", Author: "y"}})
	s.ErrorIs(err, ErrBookNotFound)
}

func (s *DatabaseTestSuite) TestReplaceDoesNotTouchOtherUsers() {
	s.insertUser("a@b.c")
	s.insertUser("d@e.f")
	_, err := s.client.UpdateBooks(s.ctx, "d@e.f", AppendBook{Book: book(1, "Theirs")})
	s.Require().NoError(err)

	_, err = s.client.UpdateBooks(s.ctx, "a@b.c", ReplaceBook{ID: 1, Fields: BookFields{Name: "x", Author: "y"}})
	s.ErrorIs(err, ErrBookNotFound)

	other, err := s.client.FindUserByEmail(s.ctx, "d@e.f")
	s.Require().NoError(err)
	s.Equal("Theirs", other.Books[0].Name)
}

func (s *DatabaseTestSuite) TestRemoveAllMatches() {
	s.insertUser("a@b.c")
	for _, b := range []Book{book(1, "A"), book(2, "B"), book(1, "C")} {
		_, err := s.client.UpdateBooks(s.ctx, "a@b.c", AppendBook{Book: b})
		s.Require().NoError(err)
	}

	u, err := s.client.UpdateBooks(s.ctx, "a@b.c", RemoveBook{ID: 1})
	s.Require().NoError(err)
	s.Require().Len(u.Books, 1)
	s.Equal("B", u.Books[0].Name)

	// removing an absent id is not an error
	u, err = s.client.UpdateBooks(s.ctx, "a@b.c", RemoveBook{ID: 99})
	s.Require().NoError(err)
	s.Len(u.Books, 1)
}

func (s *DatabaseTestSuite) TestUpdateBooksUnknownUser() {
	_, err := s.client.UpdateBooks(s.ctx, "ghost@example.com", AppendBook{Book: book(1, "A")})
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *DatabaseTestSuite) TestConcurrentAppendsAreNotLost() {
	s.insertUser("a@b.c")

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := s.client.UpdateBooks(s.ctx, "a@b.c", AppendBook{Book: book(id, "Book")})
			s.NoError(err)
		}(int64(i))
	}
	wg.Wait()

	u, err := s.client.FindUserByEmail(s.ctx, "a@b.c")
	s.Require().NoError(err)
	s.Len(u.Books, 10)
}

func (s *DatabaseTestSuite) TestReferencedImages() {
	s.insertUser("a@b.c")
	withImg := book(1, "A")
	withImg.Img = "https://books.example.com/images/book_1.jpg"
	for _, b := range []Book{withImg, book(2, "B"), withImg} {
		_, err := s.client.UpdateBooks(s.ctx, "a@b.c", AppendBook{Book: b})
		s.Require().NoError(err)
	}

	images, err := s.client.ReferencedImages(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{withImg.Img}, images)
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}

func TestUserHasPassword(t *testing.T) {
	require.False(t, (&User{}).HasPassword())
	require.True(t, (&User{PasswordHash: "x"}).HasPassword())
}
