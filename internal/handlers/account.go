package handlers

import (
	"errors"
	"strconv"

	"cora/internal/models"
	"cora/internal/services/account"
	"cora/internal/services/deposit"
	"cora/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// AccountHandler exposes account and balance endpoints.
type AccountHandler struct {
	accounts account.Service
	deposits *deposit.Service
}

func NewAccountHandler(accounts account.Service, deposits *deposit.Service) *AccountHandler {
	return &AccountHandler{accounts: accounts, deposits: deposits}
}

// CreateAccount handles POST /accounts.
func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req struct {
		Currency string `json:"currency"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	acct, err := h.accounts.CreateAccount(c.Context(), claims.UserID, req.Currency)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCurrency) {
			return response.BadRequest(c, err.Error())
		}
		return response.ServerError(c, "failed to create account")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"account": accountView(acct)})
}

// ListAccounts handles GET /accounts.
func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	accts, err := h.accounts.GetUserAccounts(c.Context(), claims.UserID)
	if err != nil {
		return response.ServerError(c, "failed to list accounts")
	}
	views := make([]fiber.Map, 0, len(accts))
	for _, acct := range accts {
		views = append(views, accountView(acct))
	}
	return c.JSON(fiber.Map{"accounts": views})
}

// GetBalance handles GET /accounts/:id/balance.
func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	acct, err := h.ownedAccount(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"account_id":    acct.ID,
		"balance_cents": acct.BalanceCents,
		"currency":      acct.Currency,
	})
}

// DepositCard handles POST /accounts/:id/deposit, funding the account from an
// external card.
func (h *AccountHandler) DepositCard(c *fiber.Ctx) error {
	acct, err := h.ownedAccount(c)
	if err != nil {
		return err
	}

	var req struct {
		AmountCents int64             `json:"amount_cents"`
		Currency    string            `json:"currency"`
		Card        deposit.CardInput `json:"card"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	receipt, err := h.deposits.Deposit(c.Context(), deposit.Request{
		AccountID:      acct.ID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		Card:           req.Card,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		switch {
		case errors.Is(err, deposit.ErrInvalidAmount),
			errors.Is(err, deposit.ErrInvalidCard),
			errors.Is(err, deposit.ErrCardExpired):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, deposit.ErrDuplicateCharge):
			return response.Error(c, fiber.StatusConflict, err.Error())
		default:
			return response.ServerError(c, "deposit failed")
		}
	}
	return c.JSON(fiber.Map{"receipt": receipt})
}

// SetAccountStatus handles PUT /admin/accounts/:id/status, locking or
// unlocking an account. Locked accounts reject every balance mutation.
func (h *AccountHandler) SetAccountStatus(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid account id")
	}

	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	switch req.Status {
	case models.AccountActive, models.AccountLocked, models.AccountClosed:
	default:
		return response.BadRequest(c, "unknown account status")
	}

	if err := h.accounts.SetStatus(c.Context(), uint(id), req.Status, req.Reason); err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return response.Error(c, fiber.StatusNotFound, "account not found")
		}
		return response.ServerError(c, "failed to update account status")
	}
	return response.Success(c, "account status updated", fiber.Map{"id": id, "status": req.Status})
}

func (h *AccountHandler) ownedAccount(c *fiber.Ctx) (*models.Account, error) {
	claims := c.Locals("claims").(*models.UserClaims)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return nil, response.BadRequest(c, "invalid account id")
	}
	acct, err := h.accounts.GetAccount(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, response.Error(c, fiber.StatusNotFound, "account not found")
		}
		return nil, response.ServerError(c, "failed to get account")
	}
	if acct.UserID != claims.UserID && claims.Role != "admin" {
		return nil, response.Error(c, fiber.StatusForbidden, "not account owner")
	}
	return acct, nil
}

func accountView(acct *models.Account) fiber.Map {
	return fiber.Map{
		"id":            acct.ID,
		"balance_cents": acct.BalanceCents,
		"currency":      acct.Currency,
		"status":        acct.Status,
		"created_at":    acct.CreatedAt,
	}
}
