package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

const (
	// DefaultClientTimeout bounds one call to the license server.
	DefaultClientTimeout = 5 * time.Second

	tokenIssuer   = "waddlebot-workflows"
	tokenLifetime = time.Minute
	maxBodyBytes  = 64 << 10
)

// Server answers license validation requests.
type Server interface {
	Validate(ctx context.Context, communityID string) (*models.LicenseVerdict, error)
}

// ClientConfig configures the license server client.
type ClientConfig struct {
	BaseURL string
	// APIKey is sent as a static bearer token when SigningKey is empty.
	APIKey string
	// SigningKey mints a short-lived HS256 bearer token per request.
	SigningKey []byte
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client calls POST /validate on the license server.
type Client struct {
	baseURL    string
	apiKey     string
	signingKey []byte
	httpClient *http.Client
	now        func() time.Time
	validate   *validator.Validate
}

type validateRequest struct {
	CommunityID string `json:"community_id"`
}

type validateResponse struct {
	Status        models.LicenseStatus `json:"status"         validate:"required,oneof=active expired invalid unlicensed"`
	Tier          models.Tier          `json:"tier"           validate:"omitempty,oneof=free premium"`
	ExpiresAt     *time.Time           `json:"expires_at"`
	Features      []string             `json:"features"`
	WorkflowLimit *int                 `json:"workflow_limit" validate:"omitempty,gte=0"`
}

// NewClient creates a license server client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultClientTimeout}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		signingKey: cfg.SigningKey,
		httpClient: httpClient,
		now:        now,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate fetches the verdict of a community.
func (c *Client) Validate(ctx context.Context, communityID string) (*models.LicenseVerdict, error) {
	body, err := json.Marshal(validateRequest{CommunityID: communityID})
	if err != nil {
		return nil, fmt.Errorf("marshal validate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}

	token, err := c.bearerToken(communityID)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrServerUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrServerUnavailable, resp.StatusCode)
	}

	var answer validateResponse
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if err := c.validate.Struct(answer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	tier := answer.Tier
	if tier == "" {
		tier = models.TierFree
	}

	return &models.LicenseVerdict{
		CommunityID:   communityID,
		Tier:          tier,
		Status:        answer.Status,
		WorkflowLimit: answer.WorkflowLimit,
		Features:      answer.Features,
		ExpiresAt:     answer.ExpiresAt,
		FetchedAt:     c.now(),
	}, nil
}

func (c *Client) bearerToken(communityID string) (string, error) {
	if len(c.signingKey) == 0 {
		return c.apiKey, nil
	}

	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   communityID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign license token: %w", err)
	}

	return token, nil
}
