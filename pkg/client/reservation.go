package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"fitbook/pkg/model"
)

type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL string) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *ReservationClient) HTTP() *HttpClient {
	return c.httpClient
}

// Reserve asks for a seat. A non-empty idempotencyKey makes retries of the
// same call replay the original answer.
func (c *ReservationClient) Reserve(ctx context.Context, memberID, sessionID, idempotencyKey string) (*model.Reservation, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{IdempotencyHeader: idempotencyKey}
	}

	body := model.ReserveRequest{MemberID: memberID, SessionID: sessionID}
	resp, err := c.httpClient.POST(ctx, "/api/v1/reservations", body, headers)
	if err != nil {
		return nil, err
	}
	return decodeData[model.Reservation](resp, http.StatusCreated)
}

func (c *ReservationClient) Cancel(ctx context.Context, memberID, sessionID string) error {
	q := url.Values{}
	q.Set("member_id", memberID)
	q.Set("session_id", sessionID)

	resp, err := c.httpClient.DELETE(ctx, "/api/v1/reservations?"+q.Encode())
	if err != nil {
		return err
	}
	return expectNoContent(resp)
}

func (c *ReservationClient) ListBySession(ctx context.Context, sessionID string, limit int, offset int64) (*Page[model.Reservation], error) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.FormatInt(offset, 10))

	resp, err := c.httpClient.GET(ctx, "/api/v1/reservations/search?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return decodePage[model.Reservation](resp)
}

func (c *ReservationClient) Availability(ctx context.Context, sessionID string) (*model.SessionAvailability, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/reservations/availability/"+url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}
	return decodeData[model.SessionAvailability](resp, http.StatusOK)
}
