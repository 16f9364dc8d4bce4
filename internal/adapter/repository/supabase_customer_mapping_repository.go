package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	domainRepo "github.com/wekeepgrowing/billing-identity/internal/domain/repository"
	"go.uber.org/zap"
)

// SupabaseCustomerMappingRepository stores mappings in a Supabase table through the PostgREST API.
type SupabaseCustomerMappingRepository struct {
	client  *http.Client
	baseURL string
	apiKey  string
	table   string
	logger  *zap.Logger
}

// supabaseMappingRow is the row shape of the mapping table
type supabaseMappingRow struct {
	UserID           string    `json:"user_id"`
	StripeCustomerID string    `json:"stripe_customer_id"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// NewSupabaseCustomerMappingRepository creates a new Supabase mapping repository.
// apiKey must be the service role key; table defaults to user_stripe_mapping.
func NewSupabaseCustomerMappingRepository(
	baseURL string,
	apiKey string,
	table string,
	logger *zap.Logger,
) domainRepo.CustomerMappingRepository {
	if table == "" {
		table = "user_stripe_mapping"
	}
	return &SupabaseCustomerMappingRepository{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		table:   table,
		logger:  logger,
	}
}

func (r *SupabaseCustomerMappingRepository) GetByUserID(ctx context.Context, userID string) (*entity.CustomerMapping, error) {
	return r.selectOne(ctx, "user_id", userID)
}

func (r *SupabaseCustomerMappingRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*entity.CustomerMapping, error) {
	return r.selectOne(ctx, "stripe_customer_id", stripeCustomerID)
}

func (r *SupabaseCustomerMappingRepository) selectOne(ctx context.Context, column, value string) (*entity.CustomerMapping, error) {
	params := url.Values{}
	params.Add(column, fmt.Sprintf("eq.%s", value))
	params.Add("select", "*")
	params.Add("limit", "1")

	req, err := r.newRequest(ctx, http.MethodGet, params, nil)
	if err != nil {
		return nil, err
	}

	var rows []supabaseMappingRow
	if err := r.do(req, &rows); err != nil {
		r.logger.Warn("SupabaseRepository: mapping lookup failed",
			zap.String("column", column),
			zap.String("value", value),
			zap.Error(err))
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toEntity(), nil
}

// Upsert uses PostgREST's on_conflict merge so the row keyed by user_id is inserted or replaced.
func (r *SupabaseCustomerMappingRepository) Upsert(ctx context.Context, userID, stripeCustomerID string) (*entity.CustomerMapping, error) {
	body, err := json.Marshal([]map[string]interface{}{{
		"user_id":            userID,
		"stripe_customer_id": stripeCustomerID,
		"updated_at":         time.Now().UTC().Format(time.RFC3339Nano),
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode mapping: %w", err)
	}

	params := url.Values{}
	params.Add("on_conflict", "user_id")

	req, err := r.newRequest(ctx, http.MethodPost, params, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")

	var rows []supabaseMappingRow
	if err := r.do(req, &rows); err != nil {
		r.logger.Error("SupabaseRepository: mapping upsert failed",
			zap.String("user_id", userID),
			zap.String("stripe_customer_id", stripeCustomerID),
			zap.Error(err))
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: upsert returned no rows", domainErrors.ErrMappingStoreUnavailable)
	}

	r.logger.Info("SupabaseRepository: mapping upserted",
		zap.String("user_id", userID),
		zap.String("stripe_customer_id", stripeCustomerID))

	return rows[0].toEntity(), nil
}

func (r *SupabaseCustomerMappingRepository) newRequest(ctx context.Context, method string, params url.Values, body io.Reader) (*http.Request, error) {
	queryURL := fmt.Sprintf("%s/rest/v1/%s?%s", r.baseURL, r.table, params.Encode())

	req, err := http.NewRequestWithContext(ctx, method, queryURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.apiKey))
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do executes the request and decodes a JSON array response into out.
func (r *SupabaseCustomerMappingRepository) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http request failed: %v", domainErrors.ErrMappingStoreUnavailable, err)
	}
	defer resp.Body.Close()

	r.logger.Debug("SupabaseRepository: request completed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("request_duration", time.Since(start)))

	if resp.StatusCode == http.StatusConflict {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s", domainErrors.ErrCustomerAlreadyMapped, errorBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized {
			r.logger.Error("SupabaseRepository: Unauthorized access to Supabase API - Check API key type and table permissions",
				zap.String("table", r.table),
				zap.ByteString("response_body", errorBody))
		}
		return fmt.Errorf("%w: supabase API error: status %d", domainErrors.ErrMappingStoreUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domainErrors.ErrMappingStoreUnavailable, err)
	}
	return nil
}

func (row supabaseMappingRow) toEntity() *entity.CustomerMapping {
	return &entity.CustomerMapping{
		UserID:           row.UserID,
		StripeCustomerID: row.StripeCustomerID,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}
