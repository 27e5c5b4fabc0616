package api

// 金额一律用字符串传输，避免 float 精度问题

type RegisterMemberReq struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role" binding:"omitempty,oneof=viewer admin super_admin"`
}

type CommonExpenseReq struct {
	Name       string `json:"name" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Month      string `json:"month" binding:"required"` // YYYY-MM-01
	PayerID    int64  `json:"payer_id" binding:"required"`
	Preference string `json:"preference" binding:"omitempty,oneof=deposit payback"`
}

type PurchaseReq struct {
	BuyerID    int64  `json:"buyer_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Date       string `json:"date" binding:"required"` // YYYY-MM-DD
	Preference string `json:"preference" binding:"omitempty,oneof=deposit payback"`
	Note       string `json:"note"`
}

type TransferReq struct {
	BuyerID int64  `json:"buyer_id" binding:"required"`
	Amount  string `json:"amount" binding:"required"` // 有符号
	Date    string `json:"date" binding:"required"`
	Note    string `json:"note"`
}

type DepositValueReq struct {
	Value string `json:"value" binding:"required"`
}

type MealWeightReq struct {
	MemberID int64  `json:"member_id" binding:"required"`
	Date     string `json:"date" binding:"required"`
	Slot     string `json:"slot" binding:"required"`
	Weight   string `json:"weight" binding:"required"`
}

type BulkMealsReq struct {
	Items []MealWeightReq `json:"items" binding:"required,min=1,dive"`
}

type ContributionReq struct {
	MemberID int64  `json:"member_id" binding:"required"`
	Category string `json:"category" binding:"required"`
	Month    string `json:"month" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}

type BulkContributionsReq struct {
	Items []ContributionReq `json:"items" binding:"required,min=1,dive"`
}

type UtilityBillReq struct {
	Category string `json:"category" binding:"required"`
	Month    string `json:"month" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}
