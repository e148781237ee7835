package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/sitechron/fieldsync/internal/models"
)

// HTTPConfig configures the HTTP remote store client
type HTTPConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	// OAuth2 client-credentials grant; leave ClientID empty to send
	// unauthenticated requests (e.g. against a LAN crew server)
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// HTTPStore talks to the hosted system of record over its JSON API
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

var kindPaths = map[models.EntityKind]string{
	models.KindTimeEntry:            "time-entries",
	models.KindSafetyIncident:       "safety-incidents",
	models.KindEquipmentTransaction: "equipment-transactions",
	models.KindMaterialDelivery:     "material-deliveries",
}

// NewHTTPStore creates an HTTP remote store client
func NewHTTPStore(cfg HTTPConfig) *HTTPStore {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" {
		oauth := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = oauth.Client(context.Background())
		client.Timeout = timeout
	}

	return &HTTPStore{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// Insert submits one field record. The Idempotency-Key header carries the
// client-generated id, so a retry after a partial network failure cannot
// create a duplicate remote record; the server answers 409 when the key was
// already applied, which is treated as success here.
func (s *HTTPStore) Insert(ctx context.Context, kind models.EntityKind, payload json.RawMessage, idempotencyKey string) (string, error) {
	path, ok := kindPaths[kind]
	if !ok {
		return "", Rejected(fmt.Sprintf("no remote collection for entity kind %q", kind), models.ErrUnknownEntityKind)
	}

	url := fmt.Sprintf("%s/api/v1/%s", s.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", Rejected("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", Transient("remote store unreachable", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode == http.StatusConflict:
		// Idempotency key already applied
		return idempotencyKey, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &result); err != nil || result.ID == "" {
			return idempotencyKey, nil
		}
		return result.ID, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", Rejected(fmt.Sprintf("remote store rejected %s: %s", kind, errorBody(body)), nil)
	default:
		return "", Transient(fmt.Sprintf("remote store returned %d", resp.StatusCode), nil)
	}
}

// FindActiveEntry asks the remote store whether the user already has an open
// time entry, enforcing the single-active-entry invariant server-side too
func (s *HTTPStore) FindActiveEntry(ctx context.Context, userID string) (*models.TimeEntry, error) {
	url := fmt.Sprintf("%s/api/v1/time-entries/active?userId=%s", s.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Rejected("building request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Transient("remote store unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var entry models.TimeEntry
		if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
			return nil, Transient("decoding active entry", err)
		}
		if entry.ID == "" {
			return nil, nil
		}
		return &entry, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, Rejected(fmt.Sprintf("active entry lookup rejected: %s", errorBody(body)), nil)
	default:
		return nil, Transient(fmt.Sprintf("remote store returned %d", resp.StatusCode), nil)
	}
}

// Ping checks reachability; used by the connectivity monitor
func (s *HTTPStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Transient("remote store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Transient(fmt.Sprintf("remote store returned %d", resp.StatusCode), nil)
	}
	return nil
}

func errorBody(body []byte) string {
	var parsed models.ErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no error detail"
	}
	return msg
}
