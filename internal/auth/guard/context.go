package guard

import (
	"context"

	"github.com/AlibekovAA/fincore/internal/account/domain"
)

type contextKey string

const accountKey contextKey = "authorized_account"

func WithAccount(ctx context.Context, account domain.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

func AccountFromContext(ctx context.Context) (domain.Account, bool) {
	account, ok := ctx.Value(accountKey).(domain.Account)
	return account, ok
}
