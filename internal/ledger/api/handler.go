package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xxz807/messledger/internal/ledger/domain"
	"github.com/xxz807/messledger/internal/ledger/service"
	"github.com/xxz807/messledger/internal/platform/eventlog"
)

// MemberHeader 操作人 ID，由外层系统注入
const MemberHeader = "X-Member-ID"

// Services 账本模块的全部服务
type Services struct {
	Members    *service.MemberService
	Settlement *service.SettlementService
	Expenses   *service.ExpenseService
	Deposits   *service.DepositService
	Batches    *service.BatchService
	Months     *service.MonthService
	Audit      eventlog.Store
}

type LedgerHandler struct {
	svc Services
}

func NewLedgerHandler(svc Services) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/members", h.RegisterMember)
	r.GET("/members", h.ListMembers)

	settlement := r.Group("/settlement/:month")
	{
		settlement.GET("", h.GetSettlement)
		settlement.GET("/utilities", h.GetUtilities)
		settlement.GET("/payables", h.GetPayables)
		settlement.GET("/float/:member", h.GetShopperFloat)
	}

	r.POST("/common-expenses", h.RecordCommonExpense)
	r.DELETE("/common-expenses/:id", h.ReverseCommonExpense)
	r.POST("/purchases", h.RecordPurchase)
	r.DELETE("/purchases/:id", h.ReversePurchase)
	r.POST("/transfers", h.RecordTransfer)
	r.DELETE("/transfers/:id", h.DeleteTransfer)

	deposits := r.Group("/deposits/:member/:month")
	{
		deposits.GET("", h.GetDeposit)
		deposits.PUT("/slots/:index", h.SetDepositSlot)
		deposits.PUT("/carry-forward", h.SetCarryForward)
	}

	r.POST("/meals/bulk", h.BulkMeals)
	r.POST("/utilities/bulk", h.BulkContributions)
	r.PUT("/utilities/bills", h.SetUtilityBill)

	r.GET("/audit-events", h.ListAuditEvents)

	months := r.Group("/months/:month")
	{
		months.GET("", h.GetMonthStatus)
		months.POST("/close", h.CloseMonth)
		months.POST("/open", h.OpenMonth)
	}
}

// ---------------------------------------------------------
// 成员

func (h *LedgerHandler) RegisterMember(c *gin.Context) {
	var req RegisterMemberReq
	if !bind(c, &req) {
		return
	}
	m, err := h.svc.Members.Register(c.Request.Context(), req.Name, domain.Role(req.Role))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *LedgerHandler) ListMembers(c *gin.Context) {
	members, err := h.svc.Members.Active(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// ---------------------------------------------------------
// 结算 (只读)

// GetSettlement GET /api/v1/settlement/:month[?as_of=YYYY-MM-DD]
func (h *LedgerHandler) GetSettlement(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}

	var (
		result domain.Settlement
		err    error
	)
	if asOf := c.Query("as_of"); asOf != "" {
		date, perr := parseDate("as_of", asOf)
		if perr != nil {
			writeError(c, perr)
			return
		}
		result, err = h.svc.Settlement.ComputeToDate(c.Request.Context(), month, date)
	} else {
		result, err = h.svc.Settlement.Compute(c.Request.Context(), month)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LedgerHandler) GetUtilities(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	summary, err := h.svc.Settlement.UtilitySummary(c.Request.Context(), month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *LedgerHandler) GetPayables(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	payables, err := h.svc.Settlement.Payables(c.Request.Context(), month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payables)
}

func (h *LedgerHandler) GetShopperFloat(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	memberID, ok := idParam(c, "member")
	if !ok {
		return
	}
	float, err := h.svc.Settlement.ShopperFloat(c.Request.Context(), memberID, month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, float)
}

// ---------------------------------------------------------
// 开销 / 采购 / 拨款

// RecordCommonExpense POST /api/v1/common-expenses
func (h *LedgerHandler) RecordCommonExpense(c *gin.Context) {
	var req CommonExpenseReq
	if !bind(c, &req) {
		return
	}

	// DTO 转换 (API Layer -> Service Layer)
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	month, err := domain.ParseMonth(req.Month)
	if err != nil {
		writeError(c, err)
		return
	}

	receipt, err := h.svc.Expenses.RecordCommonExpense(c.Request.Context(), service.CommonExpenseInput{
		Name:       req.Name,
		Amount:     amount,
		Month:      month,
		PayerID:    req.PayerID,
		Preference: domain.PaymentPreference(req.Preference),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *LedgerHandler) ReverseCommonExpense(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Expenses.ReverseCommonExpense(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) RecordPurchase(c *gin.Context) {
	var req PurchaseReq
	if !bind(c, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(c, err)
		return
	}

	receipt, err := h.svc.Expenses.RecordPurchase(c.Request.Context(), service.PurchaseInput{
		BuyerID:    req.BuyerID,
		Amount:     amount,
		Date:       date,
		Preference: domain.PaymentPreference(req.Preference),
		Note:       req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *LedgerHandler) ReversePurchase(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Expenses.ReversePurchase(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) RecordTransfer(c *gin.Context) {
	var req TransferReq
	if !bind(c, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(c, err)
		return
	}
	t, err := h.svc.Expenses.RecordTransfer(c.Request.Context(), service.TransferInput{
		BuyerID: req.BuyerID,
		Amount:  amount,
		Date:    date,
		Note:    req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *LedgerHandler) DeleteTransfer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Expenses.DeleteTransfer(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------
// 押金

func (h *LedgerHandler) GetDeposit(c *gin.Context) {
	memberID, month, ok := depositParams(c)
	if !ok {
		return
	}
	d, err := h.svc.Deposits.Get(c.Request.Context(), memberID, month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// SetDepositSlot PUT /api/v1/deposits/:member/:month/slots/:index (index 为 1..8)
func (h *LedgerHandler) SetDepositSlot(c *gin.Context) {
	memberID, month, ok := depositParams(c)
	if !ok {
		return
	}
	slot, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, &domain.ValidationError{Field: "index", Reason: "must be an integer"})
		return
	}
	var req DepositValueReq
	if !bind(c, &req) {
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	d, err := h.svc.Deposits.SetSlot(c.Request.Context(), memberID, month, slot, value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *LedgerHandler) SetCarryForward(c *gin.Context) {
	memberID, month, ok := depositParams(c)
	if !ok {
		return
	}
	var req DepositValueReq
	if !bind(c, &req) {
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	d, err := h.svc.Deposits.SetCarryForward(c.Request.Context(), memberID, month, value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ---------------------------------------------------------
// 批量

// BulkMeals POST /api/v1/meals/bulk
// 部分失败返回 422，成功的记录已生效
func (h *LedgerHandler) BulkMeals(c *gin.Context) {
	var req BulkMealsReq
	if !bind(c, &req) {
		return
	}
	updates := make([]service.MealWeightUpdate, len(req.Items))
	for i, it := range req.Items {
		date, err := parseDate("date", it.Date)
		if err != nil {
			writeError(c, err)
			return
		}
		weight, err := parseAmount("weight", it.Weight)
		if err != nil {
			writeError(c, err)
			return
		}
		updates[i] = service.MealWeightUpdate{
			MemberID: it.MemberID,
			Date:     date,
			Slot:     domain.MealSlot(it.Slot),
			Weight:   weight,
		}
	}
	results, err := h.svc.Batches.BulkUpdateMeals(c.Request.Context(), updates)
	writeBatch(c, results, err)
}

func (h *LedgerHandler) BulkContributions(c *gin.Context) {
	var req BulkContributionsReq
	if !bind(c, &req) {
		return
	}
	updates := make([]service.ContributionUpdate, len(req.Items))
	for i, it := range req.Items {
		month, err := domain.ParseMonth(it.Month)
		if err != nil {
			writeError(c, err)
			return
		}
		amount, err := parseAmount("amount", it.Amount)
		if err != nil {
			writeError(c, err)
			return
		}
		updates[i] = service.ContributionUpdate{
			MemberID: it.MemberID,
			Category: domain.UtilityCategory(it.Category),
			Month:    month,
			Amount:   amount,
		}
	}
	results, err := h.svc.Batches.BulkUpsertContributions(c.Request.Context(), updates)
	writeBatch(c, results, err)
}

func (h *LedgerHandler) SetUtilityBill(c *gin.Context) {
	var req UtilityBillReq
	if !bind(c, &req) {
		return
	}
	month, err := domain.ParseMonth(req.Month)
	if err != nil {
		writeError(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.svc.Batches.SetUtilityBill(c.Request.Context(), domain.UtilityCategory(req.Category), month, amount); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------
// 月结

func (h *LedgerHandler) GetMonthStatus(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	st, err := h.svc.Months.Status(c.Request.Context(), month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// CloseMonth POST /api/v1/months/:month/close
func (h *LedgerHandler) CloseMonth(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	result, err := h.svc.Months.CloseMonth(c.Request.Context(), month, actorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LedgerHandler) OpenMonth(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	if err := h.svc.Months.OpenMonth(c.Request.Context(), month, actorID); err != nil {
		writeError(c, err)
		return
	}
	st, err := h.svc.Months.Status(c.Request.Context(), month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ---------------------------------------------------------
// 审计

// ListAuditEvents GET /api/v1/audit-events?type=month.closed
func (h *LedgerHandler) ListAuditEvents(c *gin.Context) {
	eventType := c.Query("type")
	if eventType == "" {
		writeError(c, &domain.ValidationError{Field: "type", Reason: "is required"})
		return
	}
	events, err := h.svc.Audit.GetByType(c.Request.Context(), eventType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// ---------------------------------------------------------
// helpers

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return false
	}
	return true
}

func monthParam(c *gin.Context) (domain.Month, bool) {
	month, err := domain.ParseMonth(c.Param("month"))
	if err != nil {
		writeError(c, err)
		return domain.Month{}, false
	}
	return month, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, &domain.ValidationError{Field: name, Reason: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func depositParams(c *gin.Context) (int64, domain.Month, bool) {
	memberID, ok := idParam(c, "member")
	if !ok {
		return 0, domain.Month{}, false
	}
	month, ok := monthParam(c)
	if !ok {
		return 0, domain.Month{}, false
	}
	return memberID, month, true
}

func actor(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader(MemberHeader), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": MemberHeader + " header is required"})
		return 0, false
	}
	return id, true
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Field: field, Reason: "invalid decimal " + strconv.Quote(s)}
	}
	return d, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(domain.MonthLayout, s)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: field, Reason: "expected YYYY-MM-DD, got " + strconv.Quote(s)}
	}
	return t, nil
}

func writeBatch(c *gin.Context, results []domain.ItemResult, err error) {
	var batchErr *domain.BatchError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"results": results})
	case errors.As(err, &batchErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "results": results})
	default:
		writeError(c, err)
	}
}

// writeError 按错误类型映射 HTTP 状态码
func writeError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		batch      *domain.BatchError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict), errors.Is(err, domain.ErrOptimisticLock):
		status = http.StatusConflict
	case errors.As(err, &batch):
		status = http.StatusUnprocessableEntity
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
