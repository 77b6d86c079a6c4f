package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/bookshelf/internal/api/handler"
	"github.com/jon4hz/bookshelf/internal/api/models"
	"github.com/jon4hz/bookshelf/internal/books"
	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/jon4hz/bookshelf/internal/database"
	"github.com/jon4hz/bookshelf/internal/database/mock"
	"github.com/jon4hz/bookshelf/internal/identity"
	"github.com/jon4hz/bookshelf/internal/password"
	"github.com/jon4hz/bookshelf/internal/token"
	"github.com/jon4hz/bookshelf/internal/upload"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

// spyBooks counts calls reaching the book manager.
type spyBooks struct {
	*books.Manager
	calls atomic.Int32
}

func (s *spyBooks) Add(ctx context.Context, email string, b database.Book) (database.Book, error) {
	s.calls.Add(1)
	return s.Manager.Add(ctx, email, b)
}

func (s *spyBooks) List(ctx context.Context, email string) ([]database.Book, error) {
	s.calls.Add(1)
	return s.Manager.List(ctx, email)
}

func (s *spyBooks) Update(ctx context.Context, email string, id int64, f database.BookFields) (database.Book, error) {
	s.calls.Add(1)
	return s.Manager.Update(ctx, email, id, f)
}

func (s *spyBooks) Remove(ctx context.Context, email string, id int64) error {
	s.calls.Add(1)
	return s.Manager.Remove(ctx, email, id)
}

type APITestSuite struct {
	suite.Suite
	server *Server
	books  *spyBooks
	db     *mock.MockDB
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Listen:      "127.0.0.1:0",
		ServerURL:   "http://localhost:4000",
		TokenSecret: "test-secret",
		SessionKey:  "test-session-key",
		Session:     &config.SessionConfig{Store: config.SessionStoreCookie, MaxAge: 3600},
		Metrics:     &config.MetricsConfig{Enabled: true},
	}

	hasher, err := password.New(bcrypt.MinCost, 2)
	s.Require().NoError(err)
	tokens, err := token.NewManager(cfg.TokenSecret, 0)
	s.Require().NoError(err)
	uploads, err := upload.New(&config.UploadConfig{
		Dir:       filepath.Join(s.T().TempDir(), "images"),
		MaxSize:   1 << 20,
		MaxWidth:  600,
		MaxHeight: 900,
		Quality:   80,
	}, cfg.ServerURL)
	s.Require().NoError(err)

	s.db = mock.NewMockDB()
	users := identity.New(s.db, hasher)
	s.books = &spyBooks{Manager: books.NewManager(s.db)}

	h := handler.New(users, s.books, tokens, uploads)
	s.server, err = New(cfg, h, tokens, users, uploads.Dir(), true)
	s.Require().NoError(err)
}

func (s *APITestSuite) request(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			s.Require().NoError(json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *APITestSuite) signup(email, pw string) string {
	w := s.request(http.MethodPost, "/signup", gin.H{"email": email, "password": pw}, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := decode[models.TokenResponse](s.T(), w)
	s.Require().True(resp.Success)
	return resp.Token
}

// cookiesOf turns the Set-Cookie headers of a response into request headers.
func cookiesOf(w *httptest.ResponseRecorder) http.Header {
	h := http.Header{}
	for _, c := range w.Result().Cookies() {
		h.Add("Cookie", (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	return h
}

func authHeader(tok string) http.Header {
	return http.Header{http.CanonicalHeaderKey(token.Header): {tok}}
}

func (s *APITestSuite) TestHome() {
	w := s.request(http.MethodGet, "/", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("Working", w.Body.String())
	s.NotEmpty(w.Header().Get(requestIDHeader))
}

func (s *APITestSuite) TestSignupAndLoginScenario() {
	tok := s.signup("a@x.com", "p")
	s.NotEmpty(tok)

	w := s.request(http.MethodPost, "/signup", gin.H{"email": "a@x.com", "password": "p"}, nil)
	s.Equal(http.StatusOK, w.Code)
	dup := decode[models.Response](s.T(), w)
	s.False(dup.Success)
	s.Equal("User already exists, please login", dup.Message)

	w = s.request(http.MethodPost, "/login", gin.H{"email": "a@x.com", "password": "q"}, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Incorrect password", decode[models.Response](s.T(), w).Message)

	w = s.request(http.MethodPost, "/login", gin.H{"email": "b@x.com", "password": "p"}, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("User not found", decode[models.Response](s.T(), w).Message)

	w = s.request(http.MethodPost, "/login", gin.H{"email": "a@x.com", "password": "p"}, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := decode[models.TokenResponse](s.T(), w)
	s.True(resp.Success)

	tokens, err := token.NewManager("test-secret", 0)
	s.Require().NoError(err)
	email, err := tokens.Verify(resp.Token)
	s.Require().NoError(err)
	s.Equal("a@x.com", email)
}

func (s *APITestSuite) TestGoogleLoginCreatesPasswordlessUser() {
	w := s.request(http.MethodPost, "/googlelogin", gin.H{"email": "g@x.com"}, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.True(decode[models.TokenResponse](s.T(), w).Success)

	w = s.request(http.MethodPost, "/googlelogin", gin.H{"email": "g@x.com"}, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(1, s.db.UserCount())

	w = s.request(http.MethodPost, "/login", gin.H{"email": "g@x.com", "password": "p"}, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Please sign in with Google", decode[models.Response](s.T(), w).Message)
}

func (s *APITestSuite) TestProtectedRoutesRejectWithoutCallingBooks() {
	routes := []struct{ method, path string }{
		{http.MethodPatch, "/addbook"},
		{http.MethodPost, "/allbooks"},
		{http.MethodPost, "/updatebook"},
		{http.MethodPost, "/removebook"},
	}
	for _, r := range routes {
		w := s.request(r.method, r.path, gin.H{"bookId": 1}, nil)
		s.Equal(http.StatusUnauthorized, w.Code, r.path)
		s.Equal("please authenticate user", decode[models.Response](s.T(), w).Message)

		w = s.request(r.method, r.path, gin.H{"bookId": 1}, authHeader("garbage"))
		s.Equal(http.StatusUnauthorized, w.Code, r.path)
		s.Equal("invalid or expired token", decode[models.Response](s.T(), w).Message)

		w = s.request(r.method, "/session"+r.path, gin.H{"bookId": 1}, nil)
		s.Equal(http.StatusUnauthorized, w.Code, r.path)
	}
	s.Zero(s.books.calls.Load())
}

func (s *APITestSuite) TestBookLifecycle() {
	tok := s.signup("a@x.com", "p")
	h := authHeader(tok)

	for _, name := range []string{"first", "second"} {
		w := s.request(http.MethodPatch, "/addbook", gin.H{"id": 1, "name": name, "author": "Anon"}, h)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}
	w := s.request(http.MethodPatch, "/addbook", gin.H{"id": 2, "name": "third", "author": "Anon", "rating": 4.5}, h)
	s.Require().Equal(http.StatusOK, w.Code)
	added := decode[models.BookResponse](s.T(), w)
	s.Equal("third", added.Book.Name)

	w = s.request(http.MethodPost, "/allbooks", nil, h)
	s.Require().Equal(http.StatusOK, w.Code)
	list := decode[models.BooksResponse](s.T(), w)
	s.Require().Len(list.Books, 3)
	s.Equal(int64(1), list.Books[0].ID)
	s.Equal(int64(1), list.Books[1].ID)
	s.Equal("third", list.Books[2].Name)

	w = s.request(http.MethodPost, "/updatebook", gin.H{
		"bookId":   2,
		"formData": gin.H{"name": "THIRD", "author": "Someone", "notes": "great"},
	}, h)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.request(http.MethodPost, "/updatebook", gin.H{
		"bookId":   99,
		"formData": gin.H{"name": "x", "author": "y"},
	}, h)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Book not found", decode[models.Response](s.T(), w).Message)

	w = s.request(http.MethodPost, "/removebook", gin.H{"bookId": 1}, h)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodPost, "/allbooks", nil, h)
	list = decode[models.BooksResponse](s.T(), w)
	s.Require().Len(list.Books, 1)
	s.Equal("THIRD", list.Books[0].Name)
	s.Equal("great", list.Books[0].Notes)
}

func (s *APITestSuite) TestUpdateRejectsUnknownFields() {
	tok := s.signup("a@x.com", "p")
	h := authHeader(tok)
	w := s.request(http.MethodPatch, "/addbook", gin.H{"id": 1, "name": "n", "author": "a"}, h)
	s.Require().Equal(http.StatusOK, w.Code)

	bodies := []string{
		`{"bookId":1,"formData":{"name":"n","author":"a","owner":"b@x.com"}}`,
		`{"bookId":1,"email":"b@x.com","formData":{"name":"n","author":"a"}}`,
		`{"bookId":1}`,
		`{"formData":{"name":"n","author":"a"}}`,
		`{"bookId":1,"formData":{"name":"n"}}`,
	}
	for _, body := range bodies {
		w := s.request(http.MethodPost, "/updatebook", body, h)
		s.Equal(http.StatusBadRequest, w.Code, body)
	}
}

func (s *APITestSuite) TestAddBookValidates() {
	h := authHeader(s.signup("a@x.com", "p"))
	w := s.request(http.MethodPatch, "/addbook", gin.H{"id": 1, "name": "no author"}, h)
	s.Equal(http.StatusBadRequest, w.Code)
	w = s.request(http.MethodPatch, "/addbook", gin.H{"name": "no id", "author": "a"}, h)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestSessionFlow() {
	s.signup("a@x.com", "p")

	w := s.request(http.MethodPost, "/authcheck", nil, nil)
	s.False(decode[models.AuthCheckResponse](s.T(), w).Authenticated)

	w = s.request(http.MethodPost, "/session/login", gin.H{"email": "a@x.com", "password": "q"}, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodPost, "/session/login", gin.H{"email": "a@x.com", "password": "p"}, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	login := decode[models.SessionResponse](s.T(), w)
	s.True(login.Success)
	s.Equal("a@x.com", login.User.Email)

	cookieHeader := cookiesOf(w)

	w = s.request(http.MethodPost, "/authcheck", nil, cookieHeader)
	check := decode[models.AuthCheckResponse](s.T(), w)
	s.True(check.Authenticated)
	s.Equal("a@x.com", check.User.Email)

	w = s.request(http.MethodPatch, "/session/addbook", gin.H{"id": 7, "name": "n", "author": "a"}, cookieHeader)
	s.Require().Equal(http.StatusOK, w.Code)
	w = s.request(http.MethodPost, "/session/allbooks", nil, cookieHeader)
	s.Len(decode[models.BooksResponse](s.T(), w).Books, 1)

	w = s.request(http.MethodPost, "/session/logout", nil, cookieHeader)
	s.Require().Equal(http.StatusOK, w.Code)
	w = s.request(http.MethodPost, "/session/allbooks", nil, cookiesOf(w))
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestUploadAndServe() {
	var img bytes.Buffer
	s.Require().NoError(png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(handler.UploadFormField, "cover.png")
	s.Require().NoError(err)
	_, err = part.Write(img.Bytes())
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(w, req)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.UploadResponse](s.T(), w)
	s.True(resp.Success)
	s.True(strings.HasPrefix(resp.ImgURL, "http://localhost:4000/images/book_"))

	w = s.request(http.MethodGet, strings.TrimPrefix(resp.ImgURL, "http://localhost:4000"), nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotZero(w.Body.Len())

	w = s.request(http.MethodPost, "/upload", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestMetricsEndpoint() {
	s.signup("a@x.com", "p")
	w := s.request(http.MethodGet, "/metrics", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "bookshelf_auth_attempts_total")
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
