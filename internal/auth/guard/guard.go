package guard

import (
	"context"
	"net/http"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	"github.com/AlibekovAA/fincore/internal/auth/service"
	"github.com/AlibekovAA/fincore/internal/auth/token"
	commonhttp "github.com/AlibekovAA/fincore/internal/common/http"
	"github.com/AlibekovAA/fincore/internal/common/logger"
	"github.com/AlibekovAA/fincore/internal/observability/metrics"
)

type State string

const (
	StateHaveAccess          State = "have_access"
	StateNoAccessHaveRefresh State = "no_access_have_refresh"
	StateNoneValid           State = "none_valid"
)

type outcome string

const (
	outcomeAuthorized   outcome = "authorized"
	outcomeRefreshed    outcome = "refreshed"
	outcomeUnauthorized outcome = "unauthorized"
	outcomeError        outcome = "error"
)

type RefreshParser interface {
	Parse(kind token.Kind, raw string) (token.Claims, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, rawAccess string) (domain.Account, error)
}

type RefreshFlow interface {
	CompleteRefreshFlow(ctx context.Context, w service.TokenWriter, accountID domain.ID, presented string) (service.SessionTokens, error)
}

// Guard decides per request whether the caller is authorized, refreshing an
// expired or superseded access token on the way when a refresh token is present.
type Guard struct {
	parser   RefreshParser
	identity Authenticator
	refresh  RefreshFlow
	cookies  CookieConfig
	log      *logger.Logger
}

func New(parser RefreshParser, identity Authenticator, refresh RefreshFlow, cookies CookieConfig, log *logger.Logger) *Guard {
	return &Guard{
		parser:   parser,
		identity: identity,
		refresh:  refresh,
		cookies:  cookies,
		log:      log,
	}
}

// InitialState maps the presented credentials to a starting state.
func InitialState(access, refresh string) State {
	switch {
	case access != "":
		return StateHaveAccess
	case refresh != "":
		return StateNoAccessHaveRefresh
	default:
		return StateNoneValid
	}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := g.Authorize(w, r)
		if err != nil {
			commonhttp.HandleError(w, r, err, g.log)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// Authorize runs the decision table. Any refreshed tokens are already written
// to w when it returns. Errors are either uniform auth failures or server errors.
func (g *Guard) Authorize(w http.ResponseWriter, r *http.Request) (domain.Account, error) {
	ctx := r.Context()
	carrier := NewCookieCarrier(w, r, g.cookies)
	access := carrier.AccessToken()
	refresh := carrier.RefreshToken()

	state := InitialState(access, refresh)

	if state == StateHaveAccess {
		account, err := g.identity.Authenticate(ctx, access)
		if err == nil {
			recordDecision(StateHaveAccess, outcomeAuthorized)
			return account, nil
		}
		if !service.IsAuthFailure(err) {
			recordDecision(StateHaveAccess, outcomeError)
			return domain.Account{}, err
		}
		if refresh == "" {
			recordDecision(StateHaveAccess, outcomeUnauthorized)
			return domain.Account{}, service.ErrUnauthenticated
		}
		state = StateNoAccessHaveRefresh
	}

	if state == StateNoAccessHaveRefresh {
		return g.authorizeWithRefresh(ctx, carrier, r, refresh)
	}

	recordDecision(StateNoneValid, outcomeUnauthorized)
	return domain.Account{}, service.ErrUnauthenticated
}

func (g *Guard) authorizeWithRefresh(ctx context.Context, carrier *CookieCarrier, r *http.Request, refresh string) (domain.Account, error) {
	claims, err := g.parser.Parse(token.Refresh, refresh)
	if err != nil {
		g.log.WithFields(ctx, logger.Fields{
			"path":   r.URL.Path,
			"action": "guard_refresh_rejected",
		}).Debugf("refresh token rejected at transport: %v", err)
		recordDecision(StateNoAccessHaveRefresh, outcomeUnauthorized)
		return domain.Account{}, service.ErrInvalidRefreshToken.WithCause(err)
	}

	tokens, err := g.refresh.CompleteRefreshFlow(ctx, carrier, domain.ID(claims.AccountID()), refresh)
	if err != nil {
		if service.IsAuthFailure(err) {
			recordDecision(StateNoAccessHaveRefresh, outcomeUnauthorized)
			return domain.Account{}, err
		}
		recordDecision(StateNoAccessHaveRefresh, outcomeError)
		return domain.Account{}, err
	}

	replaceAccess(r, tokens.AccessToken)

	account, err := g.identity.Authenticate(ctx, tokens.AccessToken)
	if err != nil {
		if service.IsAuthFailure(err) {
			recordDecision(StateNoAccessHaveRefresh, outcomeUnauthorized)
		} else {
			recordDecision(StateNoAccessHaveRefresh, outcomeError)
		}
		return domain.Account{}, err
	}

	g.log.WithFields(ctx, logger.Fields{
		"account_id": string(account.ID),
		"rotated":    tokens.HasRefreshToken(),
		"action":     "guard_refreshed",
	}).Debug("request authorized after refresh")
	recordDecision(StateNoAccessHaveRefresh, outcomeRefreshed)
	return account, nil
}

func recordDecision(state State, result outcome) {
	metrics.GuardDecisions.WithLabelValues(string(state), string(result)).Inc()
}
