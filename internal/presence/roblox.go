package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	// presenceTypeInGame is the Roblox userPresenceType for an active game
	// session. 0 = offline, 1 = online (website), 2 = in game, 3 = in studio.
	presenceTypeInGame = 2

	// DefaultResolveCacheSize bounds the username resolution cache.
	DefaultResolveCacheSize = 512

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 10 * time.Second
)

// RobloxConfig holds Roblox API client settings.
type RobloxConfig struct {
	UsersURL      string
	PresenceURL   string
	ThumbnailsURL string
	Timeout       time.Duration
	CacheSize     int
}

// RobloxClient talks to the Roblox web APIs: presence lookups for the poll
// loop and username/profile resolution for the track and check commands.
type RobloxClient struct {
	httpClient    *http.Client
	usersURL      string
	presenceURL   string
	thumbnailsURL string
	resolveCache  *lru.Cache[string, ResolvedUser]
	logger        zerolog.Logger
}

// ResolvedUser is a username resolution result.
type ResolvedUser struct {
	ID          int64
	Name        string
	DisplayName string
}

// UserInfo is a user profile lookup result.
type UserInfo struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	Created     time.Time
}

// NewRobloxClient creates a Roblox API client.
func NewRobloxClient(cfg RobloxConfig, logger zerolog.Logger) (*RobloxClient, error) {
	if cfg.UsersURL == "" {
		cfg.UsersURL = "https://users.roblox.com"
	}
	if cfg.PresenceURL == "" {
		cfg.PresenceURL = "https://presence.roblox.com"
	}
	if cfg.ThumbnailsURL == "" {
		cfg.ThumbnailsURL = "https://thumbnails.roblox.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultResolveCacheSize
	}

	cache, err := lru.New[string, ResolvedUser](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolve cache: %w", err)
	}

	return &RobloxClient{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		usersURL:      cfg.UsersURL,
		presenceURL:   cfg.PresenceURL,
		thumbnailsURL: cfg.ThumbnailsURL,
		resolveCache:  cache,
		logger:        logger.With().Str("component", "roblox-client").Logger(),
	}, nil
}

// Lookup returns the current presence of a single account.
func (c *RobloxClient) Lookup(ctx context.Context, remoteID string) (Result, error) {
	results, err := c.LookupBatch(ctx, []string{remoteID})
	if err != nil {
		return Result{Status: StatusUnknown}, err
	}

	result, ok := results[remoteID]
	if !ok {
		return Result{Status: StatusUnknown}, nil
	}
	return result, nil
}

// LookupBatch returns the current presence of several accounts in one call.
// Accounts absent from the response are reported as unknown.
func (c *RobloxClient) LookupBatch(ctx context.Context, remoteIDs []string) (map[string]Result, error) {
	userIDs := make([]int64, 0, len(remoteIDs))
	for _, remoteID := range remoteIDs {
		id, err := strconv.ParseInt(remoteID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid remote id %q: %w", remoteID, err)
		}
		userIDs = append(userIDs, id)
	}

	var response struct {
		UserPresences []struct {
			UserPresenceType int    `json:"userPresenceType"`
			LastLocation     string `json:"lastLocation"`
			UserID           int64  `json:"userId"`
		} `json:"userPresences"`
	}

	err := c.postJSON(ctx, c.presenceURL+"/v1/presence/users", map[string]any{
		"userIds": userIDs,
	}, &response)
	if err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(remoteIDs))
	for _, remoteID := range remoteIDs {
		results[remoteID] = Result{Status: StatusUnknown}
	}
	for _, up := range response.UserPresences {
		result := Result{Status: StatusInactive}
		if up.UserPresenceType == presenceTypeInGame {
			result.Status = StatusActive
			result.Location = up.LastLocation
		}
		results[strconv.FormatInt(up.UserID, 10)] = result
	}

	return results, nil
}

// ResolveUsername resolves a Roblox username to its account. Results are
// cached; usernames rarely move between accounts.
func (c *RobloxClient) ResolveUsername(ctx context.Context, username string) (*ResolvedUser, error) {
	if cached, ok := c.resolveCache.Get(username); ok {
		return &cached, nil
	}

	var response struct {
		Data []struct {
			ID          int64  `json:"id"`
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"data"`
	}

	err := c.postJSON(ctx, c.usersURL+"/v1/usernames/users", map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": true,
	}, &response)
	if err != nil {
		return nil, err
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("roblox user not found: %s", username)
	}

	resolved := ResolvedUser{
		ID:          response.Data[0].ID,
		Name:        response.Data[0].Name,
		DisplayName: response.Data[0].DisplayName,
	}
	c.resolveCache.Add(username, resolved)

	return &resolved, nil
}

// UserInfo fetches the profile of an account by ID.
func (c *RobloxClient) UserInfo(ctx context.Context, remoteID string) (*UserInfo, error) {
	var response struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
		Description string `json:"description"`
		Created     string `json:"created"`
	}

	if err := c.getJSON(ctx, fmt.Sprintf("%s/v1/users/%s", c.usersURL, remoteID), &response); err != nil {
		return nil, err
	}

	created, err := time.Parse(time.RFC3339Nano, response.Created)
	if err != nil {
		// Some accounts report a truncated timestamp; the profile is still
		// usable without it.
		c.logger.Debug().Str("remote_id", remoteID).Str("created", response.Created).Msg("Unparseable account creation time")
	}

	return &UserInfo{
		ID:          response.ID,
		Name:        response.Name,
		DisplayName: response.DisplayName,
		Description: response.Description,
		Created:     created,
	}, nil
}

// AvatarURL fetches the headshot thumbnail URL of an account.
func (c *RobloxClient) AvatarURL(ctx context.Context, remoteID string) (string, error) {
	var response struct {
		Data []struct {
			TargetID int64  `json:"targetId"`
			ImageURL string `json:"imageUrl"`
		} `json:"data"`
	}

	url := fmt.Sprintf("%s/v1/users/avatar-headshot?userIds=%s&size=420x420&format=Png", c.thumbnailsURL, remoteID)
	if err := c.getJSON(ctx, url, &response); err != nil {
		return "", err
	}

	if len(response.Data) == 0 {
		return "", fmt.Errorf("no avatar for user %s", remoteID)
	}

	return response.Data[0].ImageURL, nil
}

func (c *RobloxClient) postJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *RobloxClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	return c.do(req, out)
}

func (c *RobloxClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("roblox api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("roblox api %s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode roblox response: %w", err)
	}

	return nil
}
