package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	"github.com/AlibekovAA/fincore/internal/account/mapper"
	"github.com/AlibekovAA/fincore/internal/auth/guard"
	"github.com/AlibekovAA/fincore/internal/auth/service"
	"github.com/AlibekovAA/fincore/internal/common/constants"
	commonhttp "github.com/AlibekovAA/fincore/internal/common/http"
	"github.com/AlibekovAA/fincore/internal/common/logger"
)

type signupRequest struct {
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	TelephoneNumber string `json:"telephoneNumber" validate:"required,max=32"`
	DOB             string `json:"dob" validate:"required"`
	ReferralCode    string `json:"referralCode,omitempty" validate:"omitempty,alphanum,max=32"`
}

type verifyRequest struct {
	TelephoneNumber string `json:"telephoneNumber" validate:"required,max=32"`
	OTP             string `json:"otp" validate:"required,len=6,numeric"`
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type loginRequest struct {
	TelephoneNumber string `json:"telephoneNumber" validate:"required,max=32"`
}

type adminLoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type sessionResponse struct {
	Account     mapper.Account `json:"account"`
	AccessToken string         `json:"accessToken"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type accountListResponse struct {
	Accounts []mapper.Account `json:"accounts"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type Options struct {
	Cookies        guard.CookieConfig
	RequestTimeout time.Duration
	HealthChecks   map[string]commonhttp.Pinger
}

type Handler struct {
	accounts *service.AccountService
	cookies  guard.CookieConfig
	log      *logger.Logger
}

func NewHandler(accounts *service.AccountService, g *guard.Guard, limiter *commonhttp.EndpointRateLimiter, opts Options, log *logger.Logger) http.Handler {
	h := &Handler{accounts: accounts, cookies: opts.Cookies, log: log}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = constants.DefaultAuthRequestTimeout
	}

	route := func(method, budget string, next http.Handler) http.Handler {
		return limiter.Middleware(budget)(commonhttp.RequireMethod(method)(commonhttp.WithTimeout(timeout)(next.ServeHTTP)))
	}
	admin := guard.RequireRole(log, domain.RoleAdmin, domain.RoleSuperAdmin)
	staff := guard.RequireRole(log, domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleDeveloper, domain.RoleFinance, domain.RoleSupport)
	accountViewers := guard.RequireRole(log, domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleDeveloper, domain.RoleSupport)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(log, opts.HealthChecks))

	mux.Handle("/api/v1/auth/signup", route(http.MethodPost, "signup", http.HandlerFunc(h.signup)))
	mux.Handle("/api/v1/auth/verify", route(http.MethodPost, "verify", http.HandlerFunc(h.verify)))
	mux.Handle("/api/v1/auth/resend", route(http.MethodPost, "resend", http.HandlerFunc(h.resend)))
	mux.Handle("/api/v1/auth/login", route(http.MethodPost, "login", http.HandlerFunc(h.login)))
	mux.Handle("/api/v1/auth/logout", route(http.MethodPost, "logout", g.Middleware(http.HandlerFunc(h.logout))))

	mux.Handle("/api/v1/admin/login", route(http.MethodPost, "login", http.HandlerFunc(h.adminLogin)))
	mux.Handle("/api/v1/admin/logout", route(http.MethodPost, "logout", g.Middleware(staff(http.HandlerFunc(h.logout)))))
	mux.Handle("/api/v1/admin/profile", route(http.MethodGet, "general", g.Middleware(staff(http.HandlerFunc(h.adminProfile)))))
	mux.Handle("/api/v1/admin/accounts/{id}/revoke", route(http.MethodPost, "general", g.Middleware(admin(http.HandlerFunc(h.revokeAccount)))))

	mux.Handle("/api/v1/users/me", route(http.MethodGet, "general", g.Middleware(http.HandlerFunc(h.me))))
	mux.Handle("/api/v1/users/admin/all", route(http.MethodGet, "general", g.Middleware(accountViewers(http.HandlerFunc(h.listAccounts)))))
	mux.Handle("/api/v1/users/admin/{id}", route(http.MethodGet, "general", g.Middleware(accountViewers(http.HandlerFunc(h.getAccount)))))
	return mux
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !commonhttp.BindJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.Signup(r.Context(), service.SignupInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		TelephoneNumber: req.TelephoneNumber,
		DOB:             req.DOB,
		ReferredBy:      req.ReferralCode,
	})
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !commonhttp.BindJSON(w, r, &req) {
		return
	}

	result, err := h.accounts.VerifyOTP(r.Context(), req.TelephoneNumber, req.OTP)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	h.writeSession(w, r, result)
}

func (h *Handler) resend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !commonhttp.BindJSON(w, r, &req) {
		return
	}

	if err := h.accounts.ResendOTP(r.Context(), req.Email); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusAccepted, statusResponse{Status: "otp_sent"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !commonhttp.BindJSON(w, r, &req) {
		return
	}

	if err := h.accounts.Login(r.Context(), req.TelephoneNumber); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusAccepted, statusResponse{Status: "otp_sent"})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	account, ok := guard.AccountFromContext(r.Context())
	if !ok {
		commonhttp.HandleError(w, r, service.ErrUnauthenticated, h.log)
		return
	}

	if err := h.accounts.Logout(r.Context(), account.ID); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	guard.NewCookieCarrier(w, r, h.cookies).Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !commonhttp.BindJSON(w, r, &req) {
		return
	}

	result, err := h.accounts.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	h.writeSession(w, r, result)
}

func (h *Handler) revokeAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := commonhttp.ValidateUUID(id); err != nil {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidAccountID, "invalid account id", nil, commonhttp.TraceIDFromContext(r.Context()))
		return
	}

	admin, _ := guard.AccountFromContext(r.Context())
	if err := h.accounts.RevokeAccount(r.Context(), admin.ID, domain.ID(id)); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminProfile(w http.ResponseWriter, r *http.Request) {
	account, _ := guard.AccountFromContext(r.Context())

	profile, err := h.accounts.AdminProfile(r.Context(), account.ID)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	staff, _ := guard.AccountFromContext(r.Context())

	limit := constants.DefaultAccountListLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= constants.MaxAccountListLimit {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), staff.ID, limit, offset)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, accountListResponse{Accounts: accounts, Limit: limit, Offset: offset})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := commonhttp.ValidateUUID(id); err != nil {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidAccountID, "invalid account id", nil, commonhttp.TraceIDFromContext(r.Context()))
		return
	}

	staff, _ := guard.AccountFromContext(r.Context())
	account, err := h.accounts.GetAccount(r.Context(), staff.ID, domain.ID(id))
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	account, ok := guard.AccountFromContext(r.Context())
	if !ok {
		commonhttp.HandleError(w, r, service.ErrUnauthenticated, h.log)
		return
	}

	profile, err := h.accounts.Me(r.Context(), account.ID)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, result service.SessionResult) {
	carrier := guard.NewCookieCarrier(w, r, h.cookies)
	carrier.SetAccessToken(result.Tokens.AccessToken, result.Tokens.AccessMaxAge)
	if result.Tokens.HasRefreshToken() {
		carrier.SetRefreshToken(result.Tokens.RefreshToken, result.Tokens.RefreshMaxAge)
	}

	commonhttp.WriteJSON(w, http.StatusOK, sessionResponse{
		Account:     result.Account,
		AccessToken: result.Tokens.AccessToken,
	})
}
