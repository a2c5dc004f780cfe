package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techgangboss/agentstore-sub000/internal/facilitator"
	"github.com/techgangboss/agentstore-sub000/internal/logic"
	"gorm.io/gorm"
)

func newSettleRouter(db *gorm.DB, relay facilitator.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	h := NewSettleHandler(db, logic.NewSettleLogic(db, relay, cfg), logic.NewQuoteLogic(cfg))

	r := gin.New()
	r.POST("/api/v1/agents/:id/settle", h.Settle)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestSettleInvalidAgentId(t *testing.T) {
	db, _ := newMockDB(t)
	r := newSettleRouter(db, nil)

	w, body := postJSON(t, r, "/api/v1/agents/abc/settle", `{"buyer_address":"0xbuyer"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
}

func TestSettleMissingBuyerAddress(t *testing.T) {
	db, _ := newMockDB(t)
	r := newSettleRouter(db, nil)

	w, body := postJSON(t, r, "/api/v1/agents/1/settle", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
}

func TestSettleAgentNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	r := newSettleRouter(db, nil)

	mock.ExpectQuery(`SELECT \* FROM "agent"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w, body := postJSON(t, r, "/api/v1/agents/99/settle", `{"buyer_address":"0xbuyer"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, body.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleAlreadyEntitledConflict(t *testing.T) {
	db, mock := newMockDB(t)
	r := newSettleRouter(db, nil)

	mock.ExpectQuery(`SELECT \* FROM "agent"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price_micro", "currency", "pricing_model", "status"}).
			AddRow(1, "test-agent", 5_000_000, "USDC", "one_time", "active"))

	mock.ExpectQuery(`SELECT \* FROM "entitlement"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "buyer_address", "is_active", "confirmation_status"}).
			AddRow(3, 1, "0xbuyer", true, "confirmed"))

	w, body := postJSON(t, r, "/api/v1/agents/1/settle", `{"buyer_address":"0xbuyer"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, body.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleExpiredQuoteReturnsFreshQuote(t *testing.T) {
	db, mock := newMockDB(t)
	r := newSettleRouter(db, nil)

	agentRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "price_micro", "currency", "pricing_model", "status"}).
			AddRow(1, "test-agent", 5_000_000, "USDC", "one_time", "active")
	}

	mock.ExpectQuery(`SELECT \* FROM "agent"`).WillReturnRows(agentRow())
	mock.ExpectQuery(`SELECT \* FROM "entitlement"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	// 报价过期后重新下发报价
	mock.ExpectQuery(`SELECT \* FROM "agent"`).WillReturnRows(agentRow())

	body := `{
		"buyer_address": "0xbuyer",
		"quote": {
			"agent_id": 1,
			"amount_micro": 5000000,
			"pay_to": "0xplatform",
			"expires_at": "2020-01-01T00:00:00Z"
		},
		"payment": {"x402_version": 1, "scheme": "exact", "network": "base-sepolia"}
	}`
	w, resp := postJSON(t, r, "/api/v1/agents/1/settle", body)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.False(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var required PaymentRequiredResponse
	require.NoError(t, json.Unmarshal(data, &required))
	require.NotNil(t, required.Quote)
	assert.Equal(t, int64(5_000_000), required.Quote.AmountMicro)
	assert.NotEmpty(t, required.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
