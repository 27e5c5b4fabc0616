package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xxz807/messledger/internal/ledger/adapter/repo"
	"github.com/xxz807/messledger/internal/ledger/domain"
	"github.com/xxz807/messledger/internal/ledger/service"
	"github.com/xxz807/messledger/internal/platform/eventlog"
	"github.com/xxz807/messledger/internal/platform/server"
)

func setupRouterWithDB(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// Use a per-test in-memory database to avoid cross-test interference
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(append(domain.AllModels(), &eventlog.Event{})...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := zaptest.NewLogger(t)
	repos := repo.NewRepositories(db)
	audit := eventlog.NewGormStore(db)
	events := storeSink{store: audit}
	h := NewLedgerHandler(Services{
		Members:    service.NewMemberService(repos, log),
		Settlement: service.NewSettlementService(db, repos, log),
		Expenses:   service.NewExpenseService(db, repos, log, events),
		Deposits:   service.NewDepositService(db, repos, log),
		Batches:    service.NewBatchService(db, repos, log, events),
		Months:     service.NewMonthService(db, repos, log, events),
		Audit:      audit,
	})
	return server.NewServer(log, "0", "test", h).Handler()
}

// storeSink 同步落库，测试里读审计记录不必等 worker
type storeSink struct {
	store eventlog.Store
}

func (s storeSink) Log(e eventlog.Event) {
	_ = s.store.Save(context.Background(), e)
}

func httpDo(r http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, r http.Handler, name, role string) domain.Member {
	t.Helper()
	w := httpDo(r, "POST", "/api/v1/members", RegisterMemberReq{Name: name, Role: role})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var m domain.Member
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.NotZero(t, m.ID)
	return m
}

func TestSettlementFlow(t *testing.T) {
	r := setupRouterWithDB(t)

	a := register(t, r, "A", "admin")
	b := register(t, r, "B", "")
	c := register(t, r, "C", "viewer")

	// 出勤
	w := httpDo(r, "POST", "/api/v1/meals/bulk", BulkMealsReq{Items: []MealWeightReq{
		{MemberID: a.ID, Date: "2024-01-02", Slot: "lunch", Weight: "20"},
		{MemberID: b.ID, Date: "2024-01-02", Slot: "lunch", Weight: "15"},
		{MemberID: c.ID, Date: "2024-01-03", Slot: "dinner", Weight: "15"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 采购
	for _, p := range []PurchaseReq{
		{BuyerID: b.ID, Amount: "1800", Date: "2024-01-02"},
		{BuyerID: c.ID, Amount: "1200", Date: "2024-01-03"},
	} {
		w = httpDo(r, "POST", "/api/v1/purchases", p)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// 押金
	for _, slot := range []int{1, 2} {
		w = httpDo(r, "PUT", "/api/v1/deposits/"+strconv.FormatInt(a.ID, 10)+"/2024-01-01/slots/"+strconv.Itoa(slot), DepositValueReq{Value: "1000"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = httpDo(r, "GET", "/api/v1/settlement/2024-01-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s domain.Settlement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.True(t, s.MealRate.Equal(decimal.NewFromInt(60)), s.MealRate.String())
	ma, ok := s.Member(a.ID)
	require.True(t, ok)
	require.True(t, ma.MealBalance.Equal(decimal.NewFromInt(800)))

	// 公共开销 300，A 垫付，超额进 d3
	w = httpDo(r, "POST", "/api/v1/common-expenses", CommonExpenseReq{
		Name: "gas", Amount: "300", Month: "2024-01-01", PayerID: a.ID, Preference: "deposit",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var receipt service.ExcessReceipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	require.NotNil(t, receipt.AutoDeposit)
	require.Equal(t, 3, receipt.AutoDeposit.Slot)

	w = httpDo(r, "DELETE", "/api/v1/common-expenses/"+strconv.FormatInt(receipt.RecordID, 10), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httpDo(r, "GET", "/api/v1/deposits/"+strconv.FormatInt(a.ID, 10)+"/2024-01-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.DepositRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.True(t, rec.D3.IsZero())
	require.True(t, rec.Total().Equal(decimal.NewFromInt(2000)))

	// 结账：viewer 无权限，缺少 header 401
	w = httpDo(r, "POST", "/api/v1/months/2024-01-01/close", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = httpDo(r, "POST", "/api/v1/months/2024-01-01/close", nil, MemberHeader, strconv.FormatInt(b.ID, 10))
	require.Equal(t, http.StatusForbidden, w.Code)
	w = httpDo(r, "POST", "/api/v1/months/2024-01-01/close", nil, MemberHeader, strconv.FormatInt(a.ID, 10))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httpDo(r, "GET", "/api/v1/deposits/"+strconv.FormatInt(a.ID, 10)+"/2024-02-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.True(t, rec.CarryForward.Equal(decimal.NewFromInt(800)), rec.CarryForward.String())

	// 已结账月份拒绝写入
	w = httpDo(r, "POST", "/api/v1/purchases", PurchaseReq{BuyerID: b.ID, Amount: "10", Date: "2024-01-20"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = httpDo(r, "POST", "/api/v1/months/2024-01-01/open", nil, MemberHeader, strconv.FormatInt(a.ID, 10))
	require.Equal(t, http.StatusOK, w.Code)
	var st domain.MonthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.False(t, st.IsClosed)
}

func TestBulkMeals_PartialFailure(t *testing.T) {
	r := setupRouterWithDB(t)
	a := register(t, r, "A", "admin")

	w := httpDo(r, "POST", "/api/v1/meals/bulk", BulkMealsReq{Items: []MealWeightReq{
		{MemberID: a.ID, Date: "2024-01-02", Slot: "lunch", Weight: "1"},
		{MemberID: a.ID, Date: "2024-01-02", Slot: "supper", Weight: "1"},
	}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Results []domain.ItemResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	require.Empty(t, body.Results[0].Error)
	require.NotEmpty(t, body.Results[1].Error)
}

func TestBadRequests(t *testing.T) {
	r := setupRouterWithDB(t)
	a := register(t, r, "A", "admin")

	w := httpDo(r, "GET", "/api/v1/settlement/2024-01-15", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httpDo(r, "POST", "/api/v1/purchases", PurchaseReq{BuyerID: a.ID, Amount: "abc", Date: "2024-01-02"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httpDo(r, "PUT", "/api/v1/deposits/"+strconv.FormatInt(a.ID, 10)+"/2024-01-01/slots/9", DepositValueReq{Value: "1"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httpDo(r, "DELETE", "/api/v1/purchases/77", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httpDo(r, "POST", "/api/v1/members", gin.H{"name": "X", "role": "root"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httpDo(r, "GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(server.RequestIDHeader))
}

func TestAuditEvents(t *testing.T) {
	r := setupRouterWithDB(t)
	a := register(t, r, "A", "admin")

	w := httpDo(r, "GET", "/api/v1/audit-events", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httpDo(r, "POST", "/api/v1/months/2024-01-01/close", nil, MemberHeader, strconv.FormatInt(a.ID, 10))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httpDo(r, "GET", "/api/v1/audit-events?type=month.closed", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var events []eventlog.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	require.Equal(t, "2024-01-01", events[0].Data["month"])
	require.EqualValues(t, a.ID, events[0].Metadata["actor_id"])

	w = httpDo(r, "GET", "/api/v1/audit-events?type=nothing.here", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())
}

func TestAmountScaleRejected(t *testing.T) {
	r := setupRouterWithDB(t)
	a := register(t, r, "A", "admin")

	w := httpDo(r, "POST", "/api/v1/purchases", PurchaseReq{BuyerID: a.ID, Amount: "1.23456", Date: "2024-01-02"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}
