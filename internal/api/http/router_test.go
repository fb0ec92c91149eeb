package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"libris-backend/internal/domain"
	"libris-backend/internal/ledger"
	"libris-backend/internal/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testAPI struct {
	handler http.Handler
	tokens  security.TokenManager
	auth    *MockAuthService
	users   *MockUserService
	books   *MockBookService
	loans   *MockLoanService
}

func newTestAPI() *testAPI {
	api := &testAPI{
		tokens: security.NewTokenManager(testSecret, 30*time.Minute, 24*time.Hour),
		auth:   new(MockAuthService),
		users:  new(MockUserService),
		books:  new(MockBookService),
		loans:  new(MockLoanService),
	}
	api.handler = NewRouter(api.tokens, api.auth, api.users, api.books, api.loans)
	return api
}

func (a *testAPI) tokenFor(t *testing.T, id int32, role domain.UserRole) string {
	t.Helper()
	access, err := a.tokens.GenerateAccessToken(&domain.User{ID: id, Role: role})
	require.NoError(t, err)
	return access
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI()
	rec := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticationRequired(t *testing.T) {
	api := newTestAPI()

	rec := api.do(t, http.MethodGet, "/api/v1/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/books", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	api := newTestAPI()
	member := api.tokenFor(t, 3, domain.UserRoleMember)
	librarian := api.tokenFor(t, 4, domain.UserRoleLibrarian)
	admin := api.tokenFor(t, 5, domain.UserRoleAdmin)

	t.Run("MemberCannotCreateBooks", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/v1/books", member,
			map[string]any{"isbn": "x", "title": "x", "author": "x"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("LibrarianCanCreateBooks", func(t *testing.T) {
		api.books.On("Add", mock.Anything, mock.AnythingOfType("*domain.Book")).Return(nil).Once()
		rec := api.do(t, http.MethodPost, "/api/v1/books", librarian,
			map[string]any{"isbn": "9780441172719", "title": "Dune", "author": "Frank Herbert"})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("LibrarianCannotListUsers", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/v1/users", librarian, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("AdminCanListUsers", func(t *testing.T) {
		api.users.On("List", mock.Anything, int32(1), int32(20)).Return([]domain.User{}, int32(0), nil).Once()
		rec := api.do(t, http.MethodGet, "/api/v1/users", admin, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("MemberCannotDeleteLoans", func(t *testing.T) {
		rec := api.do(t, http.MethodDelete, "/api/v1/loans/42", member, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestUserSelfRead(t *testing.T) {
	api := newTestAPI()
	member := api.tokenFor(t, 3, domain.UserRoleMember)

	t.Run("OwnRecord", func(t *testing.T) {
		api.users.On("Get", mock.Anything, int32(3)).Return(&domain.User{ID: 3}, nil).Once()
		rec := api.do(t, http.MethodGet, "/api/v1/users/3", member, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("OtherRecordForbidden", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/v1/users/4", member, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestBorrowUserScoping(t *testing.T) {
	api := newTestAPI()
	member := api.tokenFor(t, 3, domain.UserRoleMember)
	librarian := api.tokenFor(t, 4, domain.UserRoleLibrarian)

	t.Run("MemberBorrowsForSelf", func(t *testing.T) {
		// user_id in the body is ignored for members.
		api.loans.On("Borrow", mock.Anything, int32(3), int32(7), int32(0)).
			Return(&domain.Loan{ID: 1, UserID: 3, BookID: 7}, nil).Once()

		rec := api.do(t, http.MethodPost, "/api/v1/loans", member,
			map[string]any{"user_id": 99, "book_id": 7})
		assert.Equal(t, http.StatusCreated, rec.Code)
		api.loans.AssertExpectations(t)
	})

	t.Run("LibrarianLendsToAnyUser", func(t *testing.T) {
		api.loans.On("Borrow", mock.Anything, int32(99), int32(7), int32(0)).
			Return(&domain.Loan{ID: 2, UserID: 99, BookID: 7}, nil).Once()

		rec := api.do(t, http.MethodPost, "/api/v1/loans", librarian,
			map[string]any{"user_id": 99, "book_id": 7})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestErrorStatusMapping(t *testing.T) {
	api := newTestAPI()
	member := api.tokenFor(t, 3, domain.UserRoleMember)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"BookUnavailable", ledger.ErrBookUnavailable, http.StatusConflict},
		{"AlreadyReturned", ledger.ErrAlreadyReturned, http.StatusConflict},
		{"RenewalLimit", ledger.ErrRenewalLimitReached, http.StatusConflict},
		{"Overdue", ledger.ErrLoanOverdue, http.StatusConflict},
		{"Conflict", ledger.ErrLoanConflict, http.StatusConflict},
		{"Ineligible", ledger.ErrUserIneligible, http.StatusForbidden},
		{"BookNotFound", ledger.ErrBookNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api.loans.On("Borrow", mock.Anything, int32(3), int32(7), int32(0)).
				Return(nil, tc.err).Once()

			rec := api.do(t, http.MethodPost, "/api/v1/loans", member,
				map[string]any{"book_id": 7})
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestLoanGetHidesOtherMembersLoans(t *testing.T) {
	api := newTestAPI()
	member := api.tokenFor(t, 3, domain.UserRoleMember)
	librarian := api.tokenFor(t, 4, domain.UserRoleLibrarian)

	api.loans.On("Get", mock.Anything, int32(42)).Return(&domain.Loan{ID: 42, UserID: 99}, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/loans/42", member, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/loans/42", librarian, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginReturnsTokenPair(t *testing.T) {
	api := newTestAPI()

	api.auth.On("Login", mock.Anything, "alice", "s3cret").
		Return("access-token", "refresh-token", &domain.User{ID: 3}, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]any{"username": "alice", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "access-token", resp["access_token"])
	assert.Equal(t, "refresh-token", resp["refresh_token"])
	assert.Equal(t, "bearer", resp["token_type"])
}

func TestBadRequestValidation(t *testing.T) {
	api := newTestAPI()
	librarian := api.tokenFor(t, 4, domain.UserRoleLibrarian)

	t.Run("MissingBookFields", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/v1/books", librarian,
			map[string]any{"title": "no isbn"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingSearchQuery", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/v1/books/search", librarian, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("NonNumericID", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/v1/books/abc", librarian, nil)
		// The id pattern does not match, so the router 404s.
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
