// Package handlers tests for the JSON API.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/homeinv/backend/internal/db/dbtest"
	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/scheduler"
	"github.com/kimhsiao/homeinv/backend/internal/services"
)

const testOwner = "family-a"

type api struct {
	t      *testing.T
	router http.Handler
	deps   Deps
}

func newAPI(t *testing.T) *api {
	t.Helper()
	repo := dbtest.NewRepository(t)
	clock := func() time.Time { return models.MustParseDate("2024-01-01").Time() }

	trees := services.NewTreeService(repo)
	reminders := services.NewReminderService(repo).WithClock(clock)
	deps := Deps{
		Trees:     trees,
		Items:     services.NewItemService(repo, trees, reminders),
		Lendings:  services.NewLendingService(repo, reminders).WithClock(clock),
		Reminders: reminders,
		Store:     repo,
	}
	return &api{t: t, router: NewRouter(deps), deps: deps}
}

func (a *api) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.doAs(testOwner, method, path, body)
}

func (a *api) doAs(ownerID, method, path string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if body != nil {
		var buf bytes.Buffer
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		req = httptest.NewRequest(method, path, &buf)
	}
	if ownerID != "" {
		req.Header.Set(OwnerHeader, ownerID)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code apperrors.ErrorCode) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	var body errorBody
	decodeBody(t, w, &body)
	assert.Equal(t, string(code), body.Code)
	assert.NotEmpty(t, body.Message)
}

func (a *api) insert(kind, name, parentID string) *models.Node {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/nodes/"+kind, nodeRequest{Name: name, ParentID: parentID})
	require.Equal(a.t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	var n models.Node
	decodeBody(a.t, w, &n)
	return &n
}

// =====================================================
// Helper Tests
// =====================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code apperrors.ErrorCode
		want int
	}{
		{apperrors.ErrNotFound, http.StatusNotFound},
		{apperrors.ErrConflict, http.StatusConflict},
		{apperrors.ErrValidation, http.StatusBadRequest},
		{apperrors.ErrDatabase, http.StatusInternalServerError},
		{apperrors.ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.code), string(tt.code))
	}
}

func TestParentRef(t *testing.T) {
	assert.Nil(t, parentRef(""))
	assert.Nil(t, parentRef("0"))
	assert.Nil(t, parentRef("  "))
	require.NotNil(t, parentRef("abc"))
	assert.Equal(t, models.UUID("abc"), *parentRef("abc"))
}

func TestWriteError_hidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/x", nil),
		apperrors.Wrap(apperrors.ErrDatabase, "item store failure", errors.New("disk I/O error")))

	expectError(t, w, http.StatusInternalServerError, apperrors.ErrDatabase)
	assert.NotContains(t, w.Body.String(), "disk")
}

// =====================================================
// Tree Endpoint Tests
// =====================================================

func TestTree_InsertMoveDelete(t *testing.T) {
	a := newAPI(t)
	house := a.insert("spaces", "house", "0")
	assert.Equal(t, 0, house.Level)
	assert.Nil(t, house.ParentID)

	kitchen := a.insert("spaces", "kitchen", string(house.ID))
	drawer := a.insert("space", "drawer", string(kitchen.ID))
	assert.Equal(t, 2, drawer.Level)

	// Cycle guard.
	w := a.do(http.MethodPost, "/api/nodes/spaces/"+string(house.ID)+"/move", map[string]string{"parent_id": string(drawer.ID)})
	expectError(t, w, http.StatusConflict, apperrors.ErrConflict)

	// Moving the kitchen to the root re-derives the drawer.
	w = a.do(http.MethodPost, "/api/nodes/spaces/"+string(kitchen.ID)+"/move", map[string]string{"parent_id": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/nodes/spaces/"+string(drawer.ID)+"/ancestors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var path []*models.Node
	decodeBody(t, w, &path)
	require.Len(t, path, 1)
	assert.Equal(t, kitchen.ID, path[0].ID)

	// A space with children cannot be deleted.
	w = a.do(http.MethodDelete, "/api/nodes/spaces/"+string(kitchen.ID), nil)
	expectError(t, w, http.StatusConflict, apperrors.ErrConflict)

	w = a.do(http.MethodDelete, "/api/nodes/spaces/"+string(drawer.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(http.MethodDelete, "/api/nodes/spaces/"+string(drawer.ID), nil)
	expectError(t, w, http.StatusNotFound, apperrors.ErrNotFound)
}

func TestTree_GetTree(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/tree/spaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	house := a.insert("spaces", "house", "")
	a.insert("spaces", "kitchen", string(house.ID))

	w = a.do(http.MethodPut, "/api/nodes/spaces/"+string(house.ID)+"/tags", map[string][]string{"tags": {"home"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/tree/spaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var roots []*models.Node
	decodeBody(t, w, &roots)
	require.Len(t, roots, 1)
	assert.Equal(t, []string{"home"}, roots[0].Tags)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "kitchen", roots[0].Children[0].Name)

	// Other owners see nothing.
	w = a.doAs("family-b", http.MethodGet, "/api/tree/spaces", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestTree_RenameImagesVerify(t *testing.T) {
	a := newAPI(t)
	shelf := a.insert("entities", "shelf", "")

	w := a.do(http.MethodPut, "/api/nodes/entities/"+string(shelf.ID), nodeRequest{Name: "bookshelf"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var renamed models.Node
	decodeBody(t, w, &renamed)
	assert.Equal(t, "bookshelf", renamed.Name)

	w = a.do(http.MethodPost, "/api/nodes/entities/"+string(shelf.ID)+"/images", map[string]string{"file_path": "img/shelf.jpg"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = a.do(http.MethodGet, "/api/nodes/entities/"+string(shelf.ID)+"/images", nil)
	var images []*models.NodeImage
	decodeBody(t, w, &images)
	require.Len(t, images, 1)
	assert.Equal(t, "img/shelf.jpg", images[0].FilePath)

	w = a.do(http.MethodGet, "/api/tree/entities/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Consistent bool `json:"consistent"`
	}
	decodeBody(t, w, &report)
	assert.True(t, report.Consistent)

	w = a.do(http.MethodPost, "/api/tree/entities/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"repaired":0}`, w.Body.String())
}

func TestTree_badRequests(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/tree/rooms", nil)
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)

	w = a.doAs("", http.MethodGet, "/api/tree/spaces", nil)
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)

	w = a.do(http.MethodPost, "/api/nodes/spaces", map[string]string{"title": "x"})
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)

	w = a.do(http.MethodPost, "/api/nodes/spaces", nodeRequest{Name: "x", ParentID: "00000000-0000-4000-8000-000000000000"})
	expectError(t, w, http.StatusNotFound, apperrors.ErrNotFound)
}

// =====================================================
// Item, Lending and Reminder Endpoint Tests
// =====================================================

func createItem(t *testing.T, a *api, req itemRequest) *models.Item {
	t.Helper()
	w := a.do(http.MethodPost, "/api/items", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item models.Item
	decodeBody(t, w, &item)
	return &item
}

func TestItems_CreateGetUpdate(t *testing.T) {
	a := newAPI(t)
	garage := a.insert("spaces", "garage", "")

	item := createItem(t, a, itemRequest{
		Name:           "drill",
		SpaceID:        string(garage.ID),
		PurchaseDate:   models.MustParseDate("2023-01-01"),
		WarrantyMonths: 12,
	})
	assert.Equal(t, models.ItemStatusNormal, item.Status)
	require.NotNil(t, item.SpaceID)
	assert.Equal(t, garage.ID, *item.SpaceID)

	w := a.do(http.MethodGet, "/api/items/"+string(item.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/api/reminders?type=warranty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reminders []*models.Reminder
	decodeBody(t, w, &reminders)
	require.Len(t, reminders, 1)
	assert.Equal(t, "2023-12-02", reminders[0].RemindDate.String())

	// Generating again creates nothing new.
	w = a.do(http.MethodPost, "/api/items/"+string(item.ID)+"/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = a.do(http.MethodPut, "/api/items/"+string(item.ID), itemRequest{Name: "drill", Status: models.ItemStatusDamaged})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Item
	decodeBody(t, w, &updated)
	assert.Equal(t, models.ItemStatusDamaged, updated.Status)

	w = a.do(http.MethodPut, "/api/items/"+string(item.ID), itemRequest{Name: "drill", Status: models.ItemStatusLent})
	expectError(t, w, http.StatusConflict, apperrors.ErrConflict)

	w = a.doAs("family-b", http.MethodGet, "/api/items/"+string(item.ID), nil)
	expectError(t, w, http.StatusNotFound, apperrors.ErrNotFound)
}

func TestLendings_Lifecycle(t *testing.T) {
	a := newAPI(t)
	item := createItem(t, a, itemRequest{Name: "tent"})

	req := lendingRequest{ItemID: item.ID, Borrower: "Lin", ExpectedReturnDate: models.MustParseDate("2024-01-10")}
	w := a.do(http.MethodPost, "/api/lendings", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec models.LendingRecord
	decodeBody(t, w, &rec)
	assert.Equal(t, models.LendingStatusLending, rec.Status)
	assert.Equal(t, "2024-01-01", rec.LendDate.String())

	w = a.do(http.MethodPost, "/api/lendings", req)
	expectError(t, w, http.StatusConflict, apperrors.ErrConflict)

	w = a.do(http.MethodGet, "/api/lendings?status=lending", nil)
	var active []*models.LendingRecord
	decodeBody(t, w, &active)
	require.Len(t, active, 1)

	w = a.do(http.MethodGet, "/api/lendings?status=borrowed", nil)
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)

	w = a.do(http.MethodPut, "/api/lendings/"+string(rec.ID), lendingRequest{Borrower: "Lin", ExpectedReturnDate: models.MustParseDate("2024-01-20")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/lendings/"+string(rec.ID)+"/return", map[string]string{"actual_return_date": "2024-01-05"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeBody(t, w, &rec)
	assert.Equal(t, models.LendingStatusReturned, rec.Status)
	assert.Equal(t, "2024-01-05", rec.ActualReturnDate.String())

	// Returning again is a no-op, even with another date.
	w = a.do(http.MethodPost, "/api/lendings/"+string(rec.ID)+"/return", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeBody(t, w, &rec)
	assert.Equal(t, "2024-01-05", rec.ActualReturnDate.String())

	w = a.do(http.MethodGet, "/api/items/"+string(item.ID), nil)
	var got models.Item
	decodeBody(t, w, &got)
	assert.Equal(t, models.ItemStatusNormal, got.Status)

	w = a.do(http.MethodDelete, "/api/lendings/"+string(rec.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(http.MethodGet, "/api/lendings/"+string(rec.ID), nil)
	expectError(t, w, http.StatusNotFound, apperrors.ErrNotFound)
}

func TestLendings_validation(t *testing.T) {
	a := newAPI(t)
	item := createItem(t, a, itemRequest{Name: "tent"})

	w := a.do(http.MethodPost, "/api/lendings", lendingRequest{ItemID: item.ID})
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)

	w = a.do(http.MethodPost, "/api/lendings", map[string]string{"item_id": string(item.ID), "borrower": "Lin", "expected_return_date": "10/01/2024"})
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)

	w = a.do(http.MethodPost, "/api/lendings", map[string]string{"item_id": string(item.ID), "borrower": "Lin", "expected_return_date": "2024-01-10garbage"})
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)
}

func TestReminders_Endpoints(t *testing.T) {
	a := newAPI(t)
	item := createItem(t, a, itemRequest{Name: "boiler"})

	w := a.do(http.MethodPost, "/api/reminders", map[string]string{
		"item_id": string(item.ID), "type": "maintenance", "title": "Service boiler", "remind_date": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rem models.Reminder
	decodeBody(t, w, &rem)
	assert.Equal(t, models.ReminderPending, rem.Status)

	w = a.do(http.MethodPost, "/api/reminders", map[string]string{
		"item_id": string(item.ID), "type": "maintenance", "title": "again", "remind_date": "2024-03-01",
	})
	expectError(t, w, http.StatusConflict, apperrors.ErrConflict)

	w = a.do(http.MethodGet, "/api/reminders?from=2024-02-01&to=2024-03-31", nil)
	var listed []*models.Reminder
	decodeBody(t, w, &listed)
	require.Len(t, listed, 1)

	w = a.do(http.MethodGet, "/api/reminders?from=2024-04-01&to=2024-03-01", nil)
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)
	w = a.do(http.MethodGet, "/api/reminders?from=yesterday", nil)
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)
	w = a.do(http.MethodGet, "/api/reminders?from=2024-02-01xx", nil)
	expectError(t, w, http.StatusBadRequest, apperrors.ErrValidation)

	w = a.do(http.MethodPost, "/api/reminders/"+string(rem.ID)+"/processed", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeBody(t, w, &rem)
	assert.Equal(t, models.ReminderProcessed, rem.Status)
}

// =====================================================
// System Endpoint Tests
// =====================================================

type stubRunner struct {
	err error
}

func (s *stubRunner) RunNow(ctx context.Context) (*scheduler.RunResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &scheduler.RunResult{Day: models.MustParseDate("2024-01-11"), Overdue: 2}, nil
}

func (s *stubRunner) Status() scheduler.Status {
	return scheduler.Status{IsRunning: true, Runs: 3}
}

func TestSystem_Endpoints(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"homeinv","database":"ok"}`, w.Body.String())

	w = a.do(http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodPost, "/api/scheduler/run", nil)
	expectError(t, w, http.StatusNotFound, apperrors.ErrNotFound)

	deps := a.deps
	deps.Scheduler = &stubRunner{}
	router := NewRouter(deps)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scheduler/run", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result scheduler.RunResult
	decodeBody(t, w, &result)
	assert.Equal(t, 2, result.Overdue)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/scheduler", nil))
	var status scheduler.Status
	decodeBody(t, w, &status)
	assert.Equal(t, 3, status.Runs)

	deps.Scheduler = &stubRunner{err: apperrors.Conflict("sweep already in progress")}
	w = httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scheduler/run", nil))
	expectError(t, w, http.StatusConflict, apperrors.ErrConflict)
}
