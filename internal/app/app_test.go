package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/config"
	"github.com/spec-kit/carbon-ledger/internal/events"
	"github.com/spec-kit/carbon-ledger/internal/ledger"
	"github.com/spec-kit/carbon-ledger/internal/observability"
	"github.com/spec-kit/carbon-ledger/internal/repository/memory"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type client struct {
	t   *testing.T
	app *Application
}

func newClient(t *testing.T) *client {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.Config{
		App:     config.AppConfig{Name: "carbon-ledger-test", Version: "test"},
		Metrics: config.MetricsConfig{Enabled: true},
		Auth:    config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
	}
	application := New(Options{
		Config:     cfg,
		Storage:    MemoryStorage(memory.NewStore()),
		Locker:     ledger.NewLocalLocker(2 * time.Second),
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Metrics:    observability.NewMetrics(),
		Logger:     logger,
	})
	return &client{t: t, app: application}
}

func (c *client) do(method, path, token string, body any) (int, envelope) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.app.Fiber.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(c.t, err)
		if len(raw) > 0 && raw[0] == '{' {
			require.NoError(c.t, json.Unmarshal(raw, &env))
		}
	}
	return resp.StatusCode, env
}

func (c *client) decode(env envelope, out any) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal(env.Data, out))
}

type session struct {
	token  string
	userID string
	orgID  string
}

func (c *client) register(email, role, orgName string) session {
	c.t.Helper()
	body := map[string]any{
		"email":    email,
		"password": "secret123",
		"role":     role,
		"profile":  map[string]any{"first_name": "Test", "last_name": "User"},
	}
	if orgName != "" {
		body["organization"] = map[string]any{"name": orgName}
	}
	status, env := c.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(c.t, http.StatusCreated, status)

	var out struct {
		User struct {
			ID             string  `json:"id"`
			OrganizationID *string `json:"organization_id"`
		} `json:"user"`
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	c.decode(env, &out)
	s := session{token: out.Auth.Token, userID: out.User.ID}
	if out.User.OrganizationID != nil {
		s.orgID = *out.User.OrganizationID
	}
	return s
}

type transactionView struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type creditsView struct {
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Traded    decimal.Decimal `json:"traded"`
}

func (c *client) credits(token, orgID string) creditsView {
	c.t.Helper()
	status, env := c.do(http.MethodGet, "/api/organizations/"+orgID+"/credits", token, nil)
	require.Equal(c.t, http.StatusOK, status)
	var out creditsView
	c.decode(env, &out)
	return out
}

func TestTripToTransferFlow(t *testing.T) {
	c := newClient(t)

	x := c.register("x-admin@example.com", "EMPLOYER", "Org X")
	y := c.register("y-admin@example.com", "EMPLOYER", "Org Y")
	bank := c.register("bank@example.com", "BANK_ADMIN", "")
	worker := c.register("worker@example.com", "EMPLOYEE", "")
	require.NotEmpty(t, x.orgID)
	require.NotEmpty(t, y.orgID)

	status, _ := c.do(http.MethodPost, "/api/organizations/"+x.orgID+"/approve", x.token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	for _, orgID := range []string{x.orgID, y.orgID} {
		status, _ := c.do(http.MethodPost, "/api/organizations/"+orgID+"/approve", bank.token, nil)
		require.Equal(t, http.StatusOK, status)
	}

	status, _ = c.do(http.MethodPost, "/api/organizations/"+x.orgID+"/employees", x.token, map[string]any{"email": "worker@example.com"})
	require.Equal(t, http.StatusCreated, status)

	status, env := c.do(http.MethodPost, "/api/trips", worker.token, map[string]any{
		"distance":            50,
		"transport_mode":      "PUBLIC_TRANSPORT",
		"verification_method": "GPS",
		// ignored: credits are always computed
		"carbon_credits_earned": 9999,
	})
	require.Equal(t, http.StatusCreated, status)
	var trip struct {
		ID      string          `json:"id"`
		Credits decimal.Decimal `json:"carbon_credits_earned"`
		Status  string          `json:"status"`
	}
	c.decode(env, &trip)
	assert.True(t, trip.Credits.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "PENDING", trip.Status)

	status, _ = c.do(http.MethodPost, "/api/trips/"+trip.ID+"/verify", x.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, c.credits(x.token, x.orgID).Available.Equal(decimal.NewFromInt(150)))

	status, env = c.do(http.MethodPost, "/api/credits/transactions", x.token, map[string]any{
		"to_organization_id": y.orgID,
		"credits":            500,
		"price_per_credit":   "2.00",
		"payment_method":     "BANK_TRANSFER",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_BALANCE", env.Error.Code)

	status, env = c.do(http.MethodPost, "/api/credits/transactions", x.token, map[string]any{
		"to_organization_id": y.orgID,
		"credits":            40,
		"price_per_credit":   "2.00",
		"payment_method":     "bank_transfer",
	})
	require.Equal(t, http.StatusCreated, status)
	var tx transactionView
	c.decode(env, &tx)
	assert.Equal(t, "PENDING", tx.Status)
	assert.True(t, tx.TotalAmount.Equal(decimal.NewFromInt(80)))

	xCredits := c.credits(x.token, x.orgID)
	assert.True(t, xCredits.Available.Equal(decimal.NewFromInt(110)))
	assert.True(t, xCredits.Traded.Equal(decimal.NewFromInt(40)))

	// the sender cannot approve its own transfer and cannot tell it exists
	status, env = c.do(http.MethodPost, "/api/credits/transactions/"+tx.ID+"/decision", x.token, map[string]any{"approve": true})
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, env = c.do(http.MethodPost, "/api/credits/transactions/"+tx.ID+"/decision", y.token, map[string]any{"approve": true, "comment": "received"})
	require.Equal(t, http.StatusOK, status)
	c.decode(env, &tx)
	assert.Equal(t, "COMPLETED", tx.Status)

	status, env = c.do(http.MethodPost, "/api/credits/transactions/"+tx.ID+"/decision", y.token, map[string]any{"approve": true})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	yCredits := c.credits(y.token, y.orgID)
	assert.True(t, yCredits.Total.Equal(decimal.NewFromInt(40)))
	assert.True(t, yCredits.Available.Equal(decimal.NewFromInt(40)))

	status, env = c.do(http.MethodGet, "/api/credits/market-stats", bank.token, nil)
	require.Equal(t, http.StatusOK, status)
	var stats struct {
		TotalTransactions  int64           `json:"total_transactions"`
		TotalCreditsTraded int64           `json:"total_credits_traded"`
		AveragePrice       decimal.Decimal `json:"average_price"`
		TotalValue         decimal.Decimal `json:"total_value"`
	}
	c.decode(env, &stats)
	assert.Equal(t, int64(1), stats.TotalTransactions)
	assert.Equal(t, int64(40), stats.TotalCreditsTraded)
	assert.True(t, stats.AveragePrice.Equal(decimal.NewFromInt(2)))
	assert.True(t, stats.TotalValue.Equal(decimal.NewFromInt(80)))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newClient(t)

	status, env := c.do(http.MethodGet, "/api/credits/market-stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = c.do(http.MethodGet, "/api/trips", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthAndMetrics(t *testing.T) {
	c := newClient(t)

	status, _ := c.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := c.app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "carbon_http_requests_total")
}
