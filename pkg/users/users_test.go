package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/dynamo"
	"github.com/vignesh-goutham/coinledger/pkg/dynamo/dynamotest"
	"github.com/vignesh-goutham/coinledger/pkg/types"
)

const usersTable = "users-test"

type fixture struct {
	fake    *dynamotest.FakeAPI
	repo    *Repository
	svc     *Service
	handler *Handler
}

func newFixture(t *testing.T, withIndex, guarded bool) *fixture {
	t.Helper()
	fake := dynamotest.New().CreateTable(usersTable, "id")
	if withIndex {
		fake.CreateIndex(usersTable, "emailIndex", "email")
	}
	logger := zap.NewNop()
	repo := NewRepository(dynamo.NewTable(fake, usersTable, "id"), "emailIndex", guarded, logger)
	svc := NewService(repo, logger)
	return &fixture{fake: fake, repo: repo, svc: svc, handler: NewHandler(svc, logger)}
}

func (f *fixture) seed(t *testing.T, users ...types.User) {
	t.Helper()
	for _, u := range users {
		item, err := dynamo.Encode(u)
		require.NoError(t, err)
		f.fake.Seed(usersTable, item)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func getUser(f *fixture, method, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/users?"+query, nil)
	rec := httptest.NewRecorder()
	f.handler.GetUser(rec, req)
	return rec
}

func saveUser(f *fixture, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/users", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.SaveUser(rec, req)
	return rec
}

var ada = types.User{ID: "0b9f5c3e-4c7a-4a40-9d8e-2f3a1c9b7e11", Name: "Ada", Email: "ada@example.com"}

func TestGetUser_ByID(t *testing.T) {
	f := newFixture(t, true, false)
	f.seed(t, ada)

	rec := getUser(f, http.MethodGet, "id="+ada.ID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, ada.ID, user["id"])
	assert.Equal(t, "Ada", user["name"])
	assert.Equal(t, "ada@example.com", user["email"])
}

func TestGetUser_UnknownIDIsNotFound(t *testing.T) {
	f := newFixture(t, true, false)

	rec := getUser(f, http.MethodGet, "id=missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User with ID missing not found", decodeBody(t, rec)["message"])
}

func TestGetUser_IDWinsOverEmail(t *testing.T) {
	f := newFixture(t, true, false)
	f.seed(t, ada)

	rec := getUser(f, http.MethodGet, "id=missing&email=ada@example.com")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, f.fake.Calls("Query"))
}

func TestGetUser_ByEmailUsesIndex(t *testing.T) {
	f := newFixture(t, true, false)
	f.seed(t, ada)

	rec := getUser(f, http.MethodGet, "email=ada@example.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ada.ID, decodeBody(t, rec)["user"].(map[string]any)["id"])
	assert.Equal(t, 1, f.fake.Calls("Query"))
	assert.Equal(t, 0, f.fake.Calls("Scan"))
}

func TestGetUser_ByEmailFallsBackToFullScan(t *testing.T) {
	f := newFixture(t, false, false)
	f.seed(t,
		types.User{ID: "a", Name: "A", Email: "a@example.com"},
		types.User{ID: "b", Name: "B", Email: "b@example.com"},
		types.User{ID: "c", Name: "C", Email: "c@example.com"},
		types.User{ID: "d", Name: "D", Email: "d@example.com"},
		types.User{ID: "e", Name: "E", Email: "target@example.com"},
	)

	rec := getUser(f, http.MethodGet, "email=target@example.com")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "e", decodeBody(t, rec)["user"].(map[string]any)["id"])
	assert.Equal(t, 3, f.fake.Calls("Scan"))
}

func TestGetUser_UnknownEmailIsNotFound(t *testing.T) {
	f := newFixture(t, true, false)

	rec := getUser(f, http.MethodGet, "email=nobody@example.com")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User with email nobody@example.com not found", decodeBody(t, rec)["message"])
}

func TestGetUser_InvalidEmail(t *testing.T) {
	f := newFixture(t, true, false)

	rec := getUser(f, http.MethodGet, "email=not-an-email")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid email format", decodeBody(t, rec)["message"])
}

func TestGetUser_MissingParameter(t *testing.T) {
	f := newFixture(t, true, false)

	for _, query := range []string{"", "name=Ada", "ids=1"} {
		rec := getUser(f, http.MethodGet, query)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, MsgMissingParameter, decodeBody(t, rec)["message"])
	}
}

func TestGetUser_RejectsOtherMethodsFirst(t *testing.T) {
	f := newFixture(t, true, false)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := getUser(f, method, "id="+ada.ID)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, MsgGetOnly, decodeBody(t, rec)["message"])
	}
	assert.Equal(t, 0, f.fake.Calls("GetItem"))
}

func TestGetUser_StoreFailureIsOpaque500(t *testing.T) {
	f := newFixture(t, true, false)
	f.fake.FailOn("GetItem", dynamotest.ThrottlingError())

	rec := getUser(f, http.MethodGet, "id="+ada.ID)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, MsgInternal, body["message"])
	assert.NotContains(t, rec.Body.String(), "rate exceeded")
}

func TestSaveUser_Creates(t *testing.T) {
	f := newFixture(t, true, false)

	rec := saveUser(f, http.MethodPost, `{"name": "Ada", "email": "ada@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, MsgUserCreated, body["message"])
	user := body["user"].(map[string]any)
	assert.Len(t, user["id"], 36)
	assert.Equal(t, "Ada", user["name"])
	assert.Equal(t, "ada@example.com", user["email"])

	stored, found, err := f.repo.GetByID(context.Background(), user["id"].(string))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ada", stored.Name)
	assert.Equal(t, 1, f.fake.Count(usersTable))
}

func TestSaveUser_FreshIDsDifferFromExisting(t *testing.T) {
	f := newFixture(t, true, false)
	f.seed(t, ada)

	rec := saveUser(f, http.MethodPost, `{"name": "Grace", "email": "grace@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody(t, rec)["user"].(map[string]any)["id"]
	assert.NotEqual(t, ada.ID, id)
	assert.Equal(t, 2, f.fake.Count(usersTable))
}

func TestSaveUser_ValidationOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing body", ``, MsgMissingBody},
		{"invalid json", `{"name": "Ada",`, MsgInvalidJSON},
		{"wrong shape", `["Ada"]`, MsgInvalidJSON},
		{"missing name and email", `{}`, MsgNameRequired},
		{"empty name", `{"name": "", "email": "bad"}`, MsgNameRequired},
		{"missing email", `{"name": "Ada"}`, MsgEmailRequired},
		{"invalid email", `{"name": "Ada", "email": "ada@"}`, MsgInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true, false)

			rec := saveUser(f, http.MethodPost, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeBody(t, rec)["message"])
			assert.Equal(t, 0, f.fake.Count(usersTable))
		})
	}
}

func TestSaveUser_RejectsOtherMethodsFirst(t *testing.T) {
	f := newFixture(t, true, false)

	rec := saveUser(f, http.MethodGet, ``)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, MsgPostOnly, decodeBody(t, rec)["message"])
}

func TestSaveUser_DuplicateEmailConflicts(t *testing.T) {
	f := newFixture(t, true, false)
	f.seed(t, ada)

	rec := saveUser(f, http.MethodPost, `{"name": "Other Ada", "email": "ada@example.com"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, MsgEmailExists, decodeBody(t, rec)["message"])
	assert.Equal(t, 0, f.fake.Calls("PutItem"))
	assert.Equal(t, 1, f.fake.Count(usersTable))
}

func TestSaveUser_DuplicateFoundOnFirstScanPageWithoutIndex(t *testing.T) {
	f := newFixture(t, false, false)
	f.seed(t, ada)

	rec := saveUser(f, http.MethodPost, `{"name": "Other Ada", "email": "ada@example.com"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, f.fake.Calls("Scan"))
}

// Without the index only the first scan page is checked, so a duplicate
// stored further down the table is missed.
func TestSaveUser_DuplicateBeyondFirstScanPageIsMissed(t *testing.T) {
	f := newFixture(t, false, false)
	f.seed(t,
		types.User{ID: "a", Name: "A", Email: "a@example.com"},
		types.User{ID: "b", Name: "B", Email: "b@example.com"},
		types.User{ID: "z", Name: "Z", Email: "ada@example.com"},
	)

	rec := saveUser(f, http.MethodPost, `{"name": "Ada", "email": "ada@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, f.fake.Count(usersTable))
}

// A failing duplicate check does not block creation, even when the email is
// in fact taken.
func TestSaveUser_ProceedsWhenDuplicateCheckFails(t *testing.T) {
	f := newFixture(t, true, false)
	f.seed(t, ada)
	f.fake.FailOn("Query", dynamotest.ThrottlingError())

	rec := saveUser(f, http.MethodPost, `{"name": "Ada again", "email": "ada@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.fake.Count(usersTable))
}

func TestSaveUser_PutFailureIs500(t *testing.T) {
	f := newFixture(t, true, false)
	f.fake.FailOn("PutItem", dynamotest.ThrottlingError())

	rec := saveUser(f, http.MethodPost, `{"name": "Ada", "email": "ada@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgDatabaseFailed, decodeBody(t, rec)["message"])
}

// Two creates racing past the read-then-write check both succeed in the
// default mode.
func TestService_UnguardedRaceCreatesDuplicates(t *testing.T) {
	f := newFixture(t, true, false)
	ctx := context.Background()

	exists, err := f.repo.EmailExists(ctx, "ada@example.com")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, f.repo.Create(ctx, types.User{ID: "first", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, f.repo.Create(ctx, types.User{ID: "second", Name: "Ada", Email: "ada@example.com"}))

	matches, err := f.repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestService_GuardedModeRejectsConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(ctx, CreateRequest{Name: "Ada", Email: "ada@example.com"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	// one user plus its email reservation
	assert.Equal(t, 2, f.fake.Count(usersTable))
	_, found, err := f.repo.table.Get(ctx, f.repo.table.StringKey(GuardID("ADA@example.com")))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGetUser_ReservationRowIsNotAUser(t *testing.T) {
	f := newFixture(t, true, true)
	require.NoError(t, f.repo.Create(context.Background(), ada))

	rec := getUser(f, http.MethodGet, "id="+url.QueryEscape(GuardID(ada.Email)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User with ID email#ada@example.com not found", decodeBody(t, rec)["message"])
}

func TestRepository_GetByIDSkipsRowsWithoutEmail(t *testing.T) {
	f := newFixture(t, true, false)
	item, err := dynamo.Encode(types.EmailGuard{ID: "legacy-guard", UserID: ada.ID})
	require.NoError(t, err)
	f.fake.Seed(usersTable, item)

	_, found, err := f.repo.GetByID(context.Background(), "legacy-guard")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveUser_GuardedModeConflictIs409(t *testing.T) {
	f := newFixture(t, true, true)
	require.NoError(t, f.repo.Create(context.Background(), ada))

	// Emails differ only in case, so the index check misses but the
	// reservation catches it.
	rec := saveUser(f, http.MethodPost, `{"name": "Ada", "email": "ADA@example.com"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, MsgEmailExists, decodeBody(t, rec)["message"])
}
