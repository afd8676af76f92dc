package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/agritoken/stock-adapter/internal/httpclient"
	"github.com/agritoken/stock-adapter/internal/metrics"
	"github.com/agritoken/stock-adapter/internal/rate"
)

// Gateway is the ledger surface the orchestrator consumes. *Client satisfies
// it against the real HTTP gateway; tests substitute a fake.
type Gateway interface {
	CreateAsset(ctx context.Context, req CreateAssetRequest) (string, error)
	Mint(ctx context.Context, assetID string, amount int64) (*Receipt, error)
	Burn(ctx context.Context, assetID string, amount int64) (*Receipt, error)
	AssociateAccount(ctx context.Context, accountID, assetID, signingKey string) (*Receipt, error)
	Transfer(ctx context.Context, req TransferRequest) (*Receipt, error)
	AssetInfo(ctx context.Context, assetID string) (*AssetInfo, error)
	AccountBalance(ctx context.Context, accountID string) (map[string]int64, error)
}

// Client wraps low-level HTTP communication with the ledger gateway.
// Queries retry on transient failures; transaction submissions never retry,
// since the gateway offers no idempotency and a replay could double-execute.
type Client struct {
	logger      *zap.Logger
	baseURL     string
	token       string
	callTimeout time.Duration
	queryExec   *httpclient.Executor
	txExec      *httpclient.Executor
}

// NewClient constructs a gateway client. callTimeout bounds every single
// remote call; zero disables the per-call deadline.
func NewClient(logger *zap.Logger, baseURL, token string, callTimeout time.Duration, rateMgr *rate.Manager) *Client {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	handler := func(status int, body []byte) error {
		var er errorResponse
		if err := json.Unmarshal(body, &er); err != nil || er.Status == "" {
			return &GatewayError{HTTPStatus: status, Code: "UNKNOWN", Message: string(body)}
		}
		return &GatewayError{HTTPStatus: status, Code: er.Status, Message: er.Message}
	}
	return &Client{
		logger:      logger,
		baseURL:     baseURL,
		token:       token,
		callTimeout: callTimeout,
		queryExec:   httpclient.New(logger, rateMgr, httpClient, 2, "ledger", handler),
		txExec:      httpclient.New(logger, rateMgr, httpClient, 0, "ledger", handler),
	}
}

func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) submit(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	exec := c.queryExec
	if method != http.MethodGet {
		exec = c.txExec
	}

	start := time.Now()
	err = exec.DoJSON(ctx, req, op, out)
	metrics.ObserveDuration(metrics.GatewayRequestDuration, start, op)
	if err != nil {
		metrics.IncGatewayRequest(op, "error")
		return err
	}
	metrics.IncGatewayRequest(op, "ok")
	return nil
}

// CreateAsset issues a create-asset transaction and returns the new asset ID.
func (c *Client) CreateAsset(ctx context.Context, req CreateAssetRequest) (string, error) {
	var resp createAssetResponse
	if err := c.submit(ctx, "create_asset", http.MethodPost, "/v1/tokens", req, &resp); err != nil {
		return "", fmt.Errorf("create asset %q: %w", req.Name, err)
	}
	if resp.TokenID == "" {
		return "", fmt.Errorf("create asset %q: gateway returned empty token id", req.Name)
	}
	c.logger.Info("ledger.asset_created",
		zap.String("token_id", resp.TokenID),
		zap.String("symbol", req.Symbol))
	return resp.TokenID, nil
}

// Mint adds amount raw units to the asset's treasury-held supply.
func (c *Client) Mint(ctx context.Context, assetID string, amount int64) (*Receipt, error) {
	var rc Receipt
	path := fmt.Sprintf("/v1/tokens/%s/mint", url.PathEscape(assetID))
	if err := c.submit(ctx, "mint", http.MethodPost, path, mintBurnRequest{Amount: amount}, &rc); err != nil {
		return nil, fmt.Errorf("mint %d units of %s: %w", amount, assetID, err)
	}
	return &rc, nil
}

// Burn removes amount raw units from the asset's treasury-held supply.
func (c *Client) Burn(ctx context.Context, assetID string, amount int64) (*Receipt, error) {
	var rc Receipt
	path := fmt.Sprintf("/v1/tokens/%s/burn", url.PathEscape(assetID))
	if err := c.submit(ctx, "burn", http.MethodPost, path, mintBurnRequest{Amount: amount}, &rc); err != nil {
		return nil, fmt.Errorf("burn %d units of %s: %w", amount, assetID, err)
	}
	return &rc, nil
}

// AssociateAccount grants accountID the capability to hold the asset.
// An already-associated account comes back as ErrAlreadyAssociated.
func (c *Client) AssociateAccount(ctx context.Context, accountID, assetID, signingKey string) (*Receipt, error) {
	var rc Receipt
	path := fmt.Sprintf("/v1/accounts/%s/associations", url.PathEscape(accountID))
	body := associateRequest{AssetID: assetID, SigningKey: signingKey}
	if err := c.submit(ctx, "associate", http.MethodPost, path, body, &rc); err != nil {
		return nil, fmt.Errorf("associate %s with %s: %w", accountID, assetID, err)
	}
	return &rc, nil
}

// Transfer submits a single debit/credit transfer transaction.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	var rc Receipt
	if err := c.submit(ctx, "transfer", http.MethodPost, "/v1/transfers", req, &rc); err != nil {
		return nil, fmt.Errorf("transfer %d units of %s from %s to %s: %w",
			req.Amount, req.AssetID, req.From, req.To, err)
	}
	return &rc, nil
}

// AssetInfo queries the ledger's authoritative token state.
func (c *Client) AssetInfo(ctx context.Context, assetID string) (*AssetInfo, error) {
	var info AssetInfo
	path := fmt.Sprintf("/v1/tokens/%s", url.PathEscape(assetID))
	if err := c.submit(ctx, "asset_info", http.MethodGet, path, nil, &info); err != nil {
		return nil, fmt.Errorf("query asset info for %s: %w", assetID, err)
	}
	return &info, nil
}

// AccountBalance returns the raw unit balance per asset held by accountID.
func (c *Client) AccountBalance(ctx context.Context, accountID string) (map[string]int64, error) {
	var resp accountBalancesResponse
	path := fmt.Sprintf("/v1/accounts/%s/balances", url.PathEscape(accountID))
	if err := c.submit(ctx, "account_balance", http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("query balances for %s: %w", accountID, err)
	}
	if resp.Balances == nil {
		resp.Balances = map[string]int64{}
	}
	return resp.Balances, nil
}
