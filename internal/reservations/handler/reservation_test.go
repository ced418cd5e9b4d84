package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fitbook/pkg/errors"
	httputil "fitbook/pkg/http"
	"fitbook/pkg/logger"
	"fitbook/pkg/model"
)

type mockReservationService struct {
	reserveFunc       func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error)
	cancelFunc        func(ctx context.Context, memberID, sessionID string) error
	cancelByIDFunc    func(ctx context.Context, id string) error
	getByIDFunc       func(ctx context.Context, id string) (*model.Reservation, error)
	listBySessionFunc func(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	listByMemberFunc  func(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	availabilityFunc  func(ctx context.Context, sessionID string) (*model.SessionAvailability, error)
}

func (m *mockReservationService) Reserve(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, req)
	}
	return &model.Reservation{ID: "r1", MemberID: req.MemberID, SessionID: req.SessionID}, nil
}

func (m *mockReservationService) Cancel(ctx context.Context, memberID, sessionID string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, memberID, sessionID)
	}
	return nil
}

func (m *mockReservationService) CancelByID(ctx context.Context, id string) error {
	if m.cancelByIDFunc != nil {
		return m.cancelByIDFunc(ctx, id)
	}
	return nil
}

func (m *mockReservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &model.Reservation{ID: id}, nil
}

func (m *mockReservationService) ListBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if m.listBySessionFunc != nil {
		return m.listBySessionFunc(ctx, sessionID, limit, offset)
	}
	return []*model.Reservation{}, 0, nil
}

func (m *mockReservationService) ListByMember(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if m.listByMemberFunc != nil {
		return m.listByMemberFunc(ctx, memberID, limit, offset)
	}
	return []*model.Reservation{}, 0, nil
}

func (m *mockReservationService) Availability(ctx context.Context, sessionID string) (*model.SessionAvailability, error) {
	if m.availabilityFunc != nil {
		return m.availabilityFunc(ctx, sessionID)
	}
	return &model.SessionAvailability{SessionID: sessionID}, nil
}

func serve(svc *mockReservationService, method, target, body string) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewReservationHandler(svc, logger.Discard()).RegisterRoutes(router)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestReserve_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "admitted", wantStatus: http.StatusCreated},
		{name: "full", err: apperrors.SessionFull("s1", 3), wantStatus: http.StatusConflict, wantCode: apperrors.CodeSessionFull},
		{name: "duplicate", err: apperrors.AlreadyBooked("m1", "s1"), wantStatus: http.StatusConflict, wantCode: apperrors.CodeAlreadyBooked},
		{name: "cutoff", err: apperrors.TooSoonToBook("s1", time.Now(), time.Hour), wantStatus: http.StatusUnprocessableEntity, wantCode: apperrors.CodeTooSoonToBook},
		{name: "missing session", err: apperrors.NotFoundWithID("Session", "s1"), wantStatus: http.StatusNotFound, wantCode: apperrors.CodeNotFound},
		{name: "store down", err: apperrors.StoreUnavailable("down", nil), wantStatus: http.StatusServiceUnavailable, wantCode: apperrors.CodeStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.ReserveRequest
			svc := &mockReservationService{
				reserveFunc: func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
					got = req
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.Reservation{ID: "r1", MemberID: req.MemberID, SessionID: req.SessionID}, nil
				},
			}

			w := serve(svc, http.MethodPost, "/api/v1/reservations", `{"member_id":" m1 ","session_id":"s1"}`)

			require.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, got)
			assert.Equal(t, "m1", got.MemberID)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, w))
			}
		})
	}
}

func TestReserve_MalformedBody(t *testing.T) {
	called := false
	svc := &mockReservationService{
		reserveFunc: func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
			called = true
			return nil, nil
		},
	}

	w := serve(svc, http.MethodPost, "/api/v1/reservations", `{"member_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestCancel(t *testing.T) {
	var gotMember, gotSession string
	svc := &mockReservationService{
		cancelFunc: func(ctx context.Context, memberID, sessionID string) error {
			gotMember, gotSession = memberID, sessionID
			return nil
		},
	}

	w := serve(svc, http.MethodDelete, "/api/v1/reservations?member_id=m1&session_id=s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "m1", gotMember)
	assert.Equal(t, "s1", gotSession)

	w = serve(svc, http.MethodDelete, "/api/v1/reservations?member_id=m1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.cancelFunc = func(ctx context.Context, memberID, sessionID string) error {
		return apperrors.NotFound("Reservation")
	}
	w = serve(svc, http.MethodDelete, "/api/v1/reservations?member_id=m1&session_id=s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelByID(t *testing.T) {
	var gotID string
	svc := &mockReservationService{
		cancelByIDFunc: func(ctx context.Context, id string) error {
			gotID = id
			return nil
		},
	}

	w := serve(svc, http.MethodDelete, "/api/v1/reservations/id/r9", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "r9", gotID)
}

func TestSearch(t *testing.T) {
	var bySession, byMember bool
	svc := &mockReservationService{
		listBySessionFunc: func(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
			bySession = true
			assert.Equal(t, 5, limit)
			assert.Equal(t, int64(10), offset)
			return []*model.Reservation{{ID: "r1"}}, 11, nil
		},
		listByMemberFunc: func(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
			byMember = true
			return []*model.Reservation{}, 0, nil
		},
	}

	w := serve(svc, http.MethodGet, "/api/v1/reservations/search?session_id=s1&limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bySession)

	var resp httputil.PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.TotalCount)
	assert.Equal(t, 5, resp.Limit)

	w = serve(svc, http.MethodGet, "/api/v1/reservations/search?member_id=m1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, byMember)

	w = serve(svc, http.MethodGet, "/api/v1/reservations/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(svc, http.MethodGet, "/api/v1/reservations/search?member_id=m1&session_id=s1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailability(t *testing.T) {
	svc := &mockReservationService{
		availabilityFunc: func(ctx context.Context, sessionID string) (*model.SessionAvailability, error) {
			return &model.SessionAvailability{SessionID: sessionID, Capacity: 4, Reserved: 4, IsFull: true}, nil
		},
	}

	w := serve(svc, http.MethodGet, "/api/v1/reservations/availability/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_full":true`)
}

func TestHandlers_NormalizeIDs(t *testing.T) {
	const (
		member  = "65f1a2b3c4d5e6f7a8b9c0d1"
		session = "65f1a2b3c4d5e6f7a8b9c0d2"
		resID   = "65f1a2b3c4d5e6f7a8b9c0d3"
	)
	upperMember := "%20" + strings.ToUpper(member) + "%20"
	upperSession := strings.ToUpper(session)

	var got []string
	svc := &mockReservationService{
		cancelFunc: func(ctx context.Context, memberID, sessionID string) error {
			got = append(got, memberID, sessionID)
			return nil
		},
		cancelByIDFunc: func(ctx context.Context, id string) error {
			got = append(got, id)
			return nil
		},
		getByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			got = append(got, id)
			return &model.Reservation{ID: id}, nil
		},
		listBySessionFunc: func(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
			got = append(got, sessionID)
			return []*model.Reservation{}, 0, nil
		},
		listByMemberFunc: func(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
			got = append(got, memberID)
			return []*model.Reservation{}, 0, nil
		},
		availabilityFunc: func(ctx context.Context, sessionID string) (*model.SessionAvailability, error) {
			got = append(got, sessionID)
			return &model.SessionAvailability{SessionID: sessionID}, nil
		},
	}

	tests := []struct {
		name   string
		method string
		target string
		want   []string
	}{
		{
			name:   "cancel by pair",
			method: http.MethodDelete,
			target: "/api/v1/reservations?member_id=" + upperMember + "&session_id=" + upperSession,
			want:   []string{member, session},
		},
		{
			name:   "cancel by id",
			method: http.MethodDelete,
			target: "/api/v1/reservations/id/" + strings.ToUpper(resID),
			want:   []string{resID},
		},
		{
			name:   "get by id",
			method: http.MethodGet,
			target: "/api/v1/reservations/id/" + strings.ToUpper(resID),
			want:   []string{resID},
		},
		{
			name:   "search by session",
			method: http.MethodGet,
			target: "/api/v1/reservations/search?session_id=" + upperSession,
			want:   []string{session},
		},
		{
			name:   "search by member",
			method: http.MethodGet,
			target: "/api/v1/reservations/search?member_id=" + upperMember,
			want:   []string{member},
		},
		{
			name:   "availability",
			method: http.MethodGet,
			target: "/api/v1/reservations/availability/" + upperSession,
			want:   []string{session},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			w := serve(svc, tt.method, tt.target, "")
			assert.Less(t, w.Code, 300, w.Body.String())
			assert.Equal(t, tt.want, got)
		})
	}
}
