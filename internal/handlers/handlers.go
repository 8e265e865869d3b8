// Path: internal/handlers/handlers.go
package handlers

import (
	"atm-api/internal/models"
	"atm-api/internal/services"
	"atm-api/pkg/utils"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const sessionKey = "session"

type Handler struct {
	accounts           services.AccountStore
	authService        services.AuthService
	transactionService services.TransactionService
	logger             *zap.Logger
	validate           *validator.Validate
}

func NewHandler(svc *services.Service, logger *zap.Logger) *Handler {
	return &Handler{
		accounts:           svc.Accounts,
		authService:        svc.Auth,
		transactionService: svc.Transactions,
		logger:             logger,
		validate:           validator.New(),
	}
}

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	Details string `json:"details"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("AppError: %s (Code: %d, Details: %s, OriginalError: %v)", e.Message, e.Code, e.Details, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// RegisterRoutes mounts the terminal API on app.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/cards", h.GetCards)
	api.Get("/cards/:card", h.GetCard)
	api.Post("/cards/:card/session", h.CreateSession)
	api.Get("/fast-cash", h.FastCashMenu)

	api.Post("/withdraw", h.AuthMiddleware, h.Withdraw)
	api.Post("/fast-cash", h.AuthMiddleware, h.FastCash)
	api.Get("/balance", h.AuthMiddleware, h.Balance)
	api.Get("/history", h.AuthMiddleware, h.History)
	api.Post("/pin", h.AuthMiddleware, h.ChangePin)
}

func (h *Handler) ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	details := ""

	var (
		appErr *AppError
		svcErr *services.AppError
		fbErr  *fiber.Error
	)
	switch {
	case errors.As(err, &svcErr):
		code, message, details = svcErr.Code, svcErr.Message, svcErr.Details
	case errors.As(err, &appErr):
		code, message, details = appErr.Code, appErr.Message, appErr.Details
	case errors.As(err, &fbErr):
		code, message = fbErr.Code, fbErr.Message
	default:
		details = err.Error()
	}

	if code >= fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		h.logger.Debug("request rejected", zap.String("path", c.Path()), zap.Int("status", code), zap.Error(err))
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   message,
		"details": details,
	})
}

// RequestLogger logs every request once its status is known.
func (h *Handler) RequestLogger(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}
	h.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)
	return nil
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) GetCards(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cards": h.accounts.CardIDs()})
}

// GetCard returns the greeting shown once a card is inserted.
func (h *Handler) GetCard(c *fiber.Ctx) error {
	acct, err := h.accounts.Lookup(c.Params("card"))
	if err != nil {
		return err
	}

	acct.Lock()
	view := acct.View(utils.MaskCardNumber(acct.CardNumber))
	acct.Unlock()

	locked, until := h.authService.LockStatus(acct)
	resp := fiber.Map{
		"card_id":     view.CardID,
		"card_number": view.CardNumber,
		"holder_name": view.HolderName,
		"bank_name":   view.BankName,
		"locked":      locked,
	}
	if locked {
		resp["locked_until"] = until
	}
	return c.JSON(resp)
}

// CreateSession validates the PIN and returns a token good for one operation.
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	var req models.SessionRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	sess, err := h.authService.Authenticate(c.Params("card"), req.Pin)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
	})
}

func (h *Handler) AuthMiddleware(c *fiber.Ctx) error {
	if c.Method() == "OPTIONS" {
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return &AppError{
			Code:    fiber.StatusUnauthorized,
			Message: "Missing token",
			Details: "Authorization header is empty",
		}
	}

	var token string
	if _, err := fmt.Sscanf(authHeader, "Bearer %s", &token); err != nil {
		return &AppError{
			Code:    fiber.StatusUnauthorized,
			Message: "Invalid token format",
			Details: err.Error(),
		}
	}

	sess, err := h.authService.Authorize(token)
	if err != nil {
		return err
	}

	c.Locals(sessionKey, sess)
	return c.Next()
}

func (h *Handler) Withdraw(c *fiber.Ctx) error {
	sess, err := session(c)
	if err != nil {
		return err
	}

	var req models.WithdrawRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	balance, err := h.transactionService.Withdraw(sess, req.Amount)
	if err != nil {
		return err
	}

	return c.JSON(cashResponse(req.Amount, balance))
}

func (h *Handler) FastCashMenu(c *fiber.Ctx) error {
	options := h.transactionService.FastCashOptions()
	menu := make([]fiber.Map, 0, len(options))
	for i, amount := range options {
		menu = append(menu, fiber.Map{
			"selection":      i + 1,
			"amount":         amount,
			"amount_display": utils.FormatAmount(amount),
		})
	}
	return c.JSON(fiber.Map{"options": menu})
}

func (h *Handler) FastCash(c *fiber.Ctx) error {
	sess, err := session(c)
	if err != nil {
		return err
	}

	var req models.FastCashRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	balance, err := h.transactionService.FastCash(sess, req.Selection)
	if err != nil {
		return err
	}

	amount := h.transactionService.FastCashOptions()[req.Selection-1]
	return c.JSON(cashResponse(amount, balance))
}

func (h *Handler) Balance(c *fiber.Ctx) error {
	sess, err := session(c)
	if err != nil {
		return err
	}

	balance, err := h.transactionService.CheckBalance(sess)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"balance":         balance,
		"balance_display": utils.FormatAmount(balance),
	})
}

func (h *Handler) History(c *fiber.Ctx) error {
	sess, err := session(c)
	if err != nil {
		return err
	}

	history, err := h.transactionService.ViewHistory(sess)
	if err != nil {
		return err
	}

	resp := fiber.Map{"transactions": history}
	if len(history) == 0 {
		resp["message"] = "No transactions found."
	}
	return c.JSON(resp)
}

func (h *Handler) ChangePin(c *fiber.Ctx) error {
	sess, err := session(c)
	if err != nil {
		return err
	}

	var req models.ChangePinRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	if err := h.transactionService.ChangePin(sess, req.NewPin, req.ConfirmPin); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "PIN successfully changed"})
}

func (h *Handler) parse(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return &AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request format",
			Details: err.Error(),
			Err:     err,
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return &AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request",
			Details: err.Error(),
			Err:     err,
		}
	}
	return nil
}

func session(c *fiber.Ctx) (*services.Session, error) {
	sess, ok := c.Locals(sessionKey).(*services.Session)
	if !ok {
		return nil, &AppError{
			Code:    fiber.StatusInternalServerError,
			Message: "Failed to retrieve session",
			Details: "Session was not of the expected type",
		}
	}
	return sess, nil
}

func cashResponse(amount, balance int64) fiber.Map {
	return fiber.Map{
		"message":         "Please collect your money",
		"amount":          amount,
		"amount_display":  utils.FormatAmount(amount),
		"balance":         balance,
		"balance_display": utils.FormatAmount(balance),
	}
}
