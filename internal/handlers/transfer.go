package handlers

import (
	"errors"

	"cora/internal/models"
	"cora/internal/services/account"
	"cora/internal/services/transfer"
	"cora/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// TransferHandler exposes the funds-transfer endpoints.
type TransferHandler struct {
	service  transfer.Service
	accounts account.Service
}

func NewTransferHandler(s transfer.Service, accounts account.Service) *TransferHandler {
	return &TransferHandler{service: s, accounts: accounts}
}

// CreateTransfer handles POST /transfers. The transfer is accepted for
// asynchronous processing; clients poll GetTransfer for the outcome.
func (h *TransferHandler) CreateTransfer(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req struct {
		SenderAccountID   uint   `json:"sender_account_id"`
		ReceiverAccountID uint   `json:"receiver_account_id"`
		AmountCents       int64  `json:"amount_cents"`
		Currency          string `json:"currency"`
		Description       string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	tx, err := h.service.CreateTransfer(c.Context(), transfer.CreateRequest{
		UserID:            claims.UserID,
		SenderAccountID:   req.SenderAccountID,
		ReceiverAccountID: req.ReceiverAccountID,
		AmountCents:       req.AmountCents,
		Currency:          req.Currency,
		Description:       req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, transfer.ErrInvalidAmount),
			errors.Is(err, transfer.ErrSameAccount):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, transfer.ErrSourceNotFound):
			return response.Error(c, fiber.StatusNotFound, err.Error())
		case errors.Is(err, transfer.ErrNotAccountOwner):
			return response.Error(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, transfer.ErrServiceUnavailable),
			errors.Is(err, transfer.ErrAccountLookupFailed):
			return response.Error(c, fiber.StatusServiceUnavailable, err.Error())
		default:
			return response.ServerError(c, "failed to create transfer")
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"transfer": transferView(tx),
	})
}

// GetTransfer handles GET /transfers/:id.
func (h *TransferHandler) GetTransfer(c *fiber.Ctx) error {
	transferID := c.Params("id")
	if transferID == "" {
		return response.BadRequest(c, "transfer id required")
	}

	tx, err := h.service.GetTransferStatus(c.Context(), transferID)
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound) {
			return response.Error(c, fiber.StatusNotFound, "transfer not found")
		}
		return response.ServerError(c, "failed to get transfer")
	}

	claims := c.Locals("claims").(*models.UserClaims)
	if claims.Role != "admin" && !h.isParticipant(c, claims.UserID, tx) {
		// Hide other users' transfers rather than reveal their existence.
		return response.Error(c, fiber.StatusNotFound, "transfer not found")
	}

	return c.JSON(fiber.Map{"transfer": transferView(tx)})
}

func (h *TransferHandler) isParticipant(c *fiber.Ctx, userID uint, tx *models.Transaction) bool {
	if h.accounts == nil {
		return true
	}
	owned, err := h.accounts.GetUserAccounts(c.Context(), userID)
	if err != nil {
		return false
	}
	for _, acct := range owned {
		if acct.ID == tx.SenderAccountID || acct.ID == tx.ReceiverAccountID {
			return true
		}
	}
	return false
}

func transferView(tx *models.Transaction) fiber.Map {
	return fiber.Map{
		"transfer_id":         tx.TransferID,
		"sender_account_id":   tx.SenderAccountID,
		"receiver_account_id": tx.ReceiverAccountID,
		"amount_cents":        tx.AmountCents,
		"currency":            tx.Currency,
		"status":              tx.Status,
		"fraud_note":          tx.FraudNote,
		"created_at":          tx.CreatedAt,
		"updated_at":          tx.UpdatedAt,
	}
}
