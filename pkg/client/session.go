package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fitbook/pkg/model"
)

type SessionClient struct {
	httpClient *HttpClient
}

func NewSessionClient(baseURL string) *SessionClient {
	return &SessionClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *SessionClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *SessionClient) Create(ctx context.Context, req *model.CreateSessionRequest) (*model.Session, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/sessions", req, nil)
	if err != nil {
		return nil, err
	}
	return decodeData[model.Session](resp, http.StatusCreated)
}

func (c *SessionClient) GetByID(ctx context.Context, id string) (*model.Session, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/sessions/id/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	return decodeData[model.Session](resp, http.StatusOK)
}

func (c *SessionClient) GetAll(ctx context.Context, limit int, offset int64) (*Page[model.Session], error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.FormatInt(offset, 10))

	resp, err := c.httpClient.GET(ctx, "/api/v1/sessions?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return decodePage[model.Session](resp)
}

func (c *SessionClient) Search(ctx context.Context, instructorID string, from, to *time.Time) ([]model.Session, error) {
	q := url.Values{}
	q.Set("instructor_id", instructorID)
	if from != nil {
		q.Set("from", from.UTC().Format(time.RFC3339))
	}
	if to != nil {
		q.Set("to", to.UTC().Format(time.RFC3339))
	}

	resp, err := c.httpClient.GET(ctx, "/api/v1/sessions/search?"+q.Encode())
	if err != nil {
		return nil, err
	}
	sessions, err := decodeData[[]model.Session](resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return *sessions, nil
}

func (c *SessionClient) Update(ctx context.Context, id string, update *model.SessionUpdate) (*model.Session, error) {
	resp, err := c.httpClient.PATCH(ctx, "/api/v1/sessions/id/"+url.PathEscape(id), update)
	if err != nil {
		return nil, err
	}
	return decodeData[model.Session](resp, http.StatusOK)
}

func (c *SessionClient) Delete(ctx context.Context, id string) error {
	resp, err := c.httpClient.DELETE(ctx, "/api/v1/sessions/id/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return expectNoContent(resp)
}
