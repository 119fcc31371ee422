package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"agency-chat-client/internal/models"
)

// APIError is returned for any non-2xx backend response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// Client talks to the admin backend's REST surface.
type Client struct {
	base  string
	http  *http.Client
	token func() string
	log   *zap.Logger
}

// NewClient builds a Client. token is invoked per request so a refreshed
// session is picked up without rebuilding the client.
func NewClient(base string, token func() string, log *zap.Logger) *Client {
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: 30 * time.Second},
		token: token,
		log:   log,
	}
}

// ResolveManager returns the manager assigned to the current agency user.
func (c *Client) ResolveManager(ctx context.Context) (models.Manager, error) {
	ctx, span := otel.Tracer("agency-chat-client/rest").Start(ctx, "rest.resolve_manager")
	defer span.End()

	var manager models.Manager
	if err := c.getJSON(ctx, "/api/agency/manager-by", &manager); err != nil {
		return models.Manager{}, err
	}
	return manager, nil
}

// ListRooms returns the rooms visible to the current user.
func (c *Client) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	ctx, span := otel.Tracer("agency-chat-client/rest").Start(ctx, "rest.list_rooms")
	defer span.End()

	var rooms []models.ChatRoom
	if err := c.getJSON(ctx, "/api/chat/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room containing the given members.
func (c *Client) CreateRoom(ctx context.Context, memberIDs []string) (models.ChatRoom, error) {
	ctx, span := otel.Tracer("agency-chat-client/rest").Start(ctx, "rest.create_room")
	defer span.End()

	body, err := json.Marshal(map[string][]string{"member_ids": memberIDs})
	if err != nil {
		return models.ChatRoom{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat/rooms", bytes.NewReader(body))
	if err != nil {
		return models.ChatRoom{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var room models.ChatRoom
	if err := c.do(req, &room); err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

// GetMessages fetches one history page for a room, newest page first.
func (c *Client) GetMessages(ctx context.Context, roomID string, skip, take int) ([]models.ChatMessage, error) {
	ctx, span := otel.Tracer("agency-chat-client/rest").Start(ctx, "rest.get_messages")
	span.SetAttributes(attribute.String("room_id", roomID))
	defer span.End()

	path := "/api/chat/rooms/" + url.PathEscape(roomID) + "/messages?skip=" +
		strconv.Itoa(skip) + "&take=" + strconv.Itoa(take)

	var msgs []models.ChatMessage
	if err := c.getJSON(ctx, path, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// UploadFile uploads a single file as multipart form data. The upload
// endpoint has shipped two response shapes: a JSON array of results or a
// single object whose URL field is either url or imageUrl. Both are
// accepted here.
func (c *Client) UploadFile(ctx context.Context, name, contentType string, r io.Reader) (models.UploadResult, error) {
	ctx, span := otel.Tracer("agency-chat-client/rest").Start(ctx, "rest.upload_file")
	span.SetAttributes(attribute.String("file_name", name))
	defer span.End()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return models.UploadResult{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return models.UploadResult{}, err
	}
	if err := writer.Close(); err != nil {
		return models.UploadResult{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat/upload", &buf)
	if err != nil {
		return models.UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return models.UploadResult{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.UploadResult{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.UploadResult{}, &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	return decodeUploadResponse(data)
}

func decodeUploadResponse(data []byte) (models.UploadResult, error) {
	var list []models.UploadResult
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}

	var single struct {
		URL      string `json:"url"`
		ImageURL string `json:"imageUrl"`
		PublicID string `json:"publicId"`
	}
	if err := json.Unmarshal(data, &single); err != nil {
		return models.UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}

	result := models.UploadResult{ImageURL: single.ImageURL, PublicID: single.PublicID}
	if result.ImageURL == "" {
		result.ImageURL = single.URL
	}
	if result.ImageURL == "" {
		return models.UploadResult{}, fmt.Errorf("upload response carried no url")
	}
	return result, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("backend request failed",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
