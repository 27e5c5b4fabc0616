package repo

import (
	"errors"

	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

// base 所有仓储共享的连接选择
type base struct {
	db *gorm.DB
}

// conn 传入事务会话时必须用它，而不是 r.db
func (b base) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return b.db
}

// notFound 把 GORM 的 ErrRecordNotFound 转成领域错误
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// NewRepositories 用同一个连接构造全部 GORM 仓储
func NewRepositories(db *gorm.DB) domain.Repositories {
	return domain.Repositories{
		Members:   NewMemberRepo(db),
		Meals:     NewMealRepo(db),
		Purchases: NewPurchaseRepo(db),
		Transfers: NewTransferRepo(db),
		Expenses:  NewCommonExpenseRepo(db),
		Deposits:  NewDepositRepo(db),
		Months:    NewMonthStatusRepo(db),
		Payables:  NewPayableRepo(db),
		Utilities: NewUtilityRepo(db),
	}
}
