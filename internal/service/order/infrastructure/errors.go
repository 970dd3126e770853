package infrastructure

import (
	"context"
	"errors"

	"backoffice/internal/service/order/domain"

	"github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"
)

// MySQL 错误码，见 https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDupEntry        = 1062
	errLockDeadlock    = 1213
	errLockWaitTimeout = 1205
)

// classify 把驱动错误映射到领域错误分类，领域错误与 context 错误原样返回。
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDupEntry:
			return pkgerrors.Wrap(domain.ErrConflict, myErr.Message)
		case errLockDeadlock, errLockWaitTimeout:
			return pkgerrors.Wrapf(domain.ErrConflict, "mysql %d: %s", myErr.Number, myErr.Message)
		}
		return pkgerrors.Wrapf(err, "mysql %d", myErr.Number)
	}
	return pkgerrors.WithStack(err)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidRequest,
		domain.ErrNotFound,
		domain.ErrInsufficientStock,
		domain.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
