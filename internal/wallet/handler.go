package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"

	"github.com/congo-pay/treasury/internal/apierr"
	"github.com/congo-pay/treasury/internal/middleware"
	"github.com/congo-pay/treasury/internal/params"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type transferRequest struct {
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

type invokeRequest struct {
	Target string `json:"target"`
	Data   string `json:"data"`
}

type balanceResponse struct {
	Holder    string `json:"holder"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

type proceedsResponse struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func toBalanceResponse(b Balance) balanceResponse {
	return balanceResponse{
		Holder:    b.Holder.Hex(),
		Asset:     b.Asset.Hex(),
		Amount:    b.Amount.Dec(),
		Timestamp: b.AsOf.Format(time.RFC3339Nano),
	}
}

// Info describes the wallet: custody address, admin and permitted members.
func (h *Handler) Info(c *fiber.Ctx) error {
	members := h.service.Members()
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Hex()
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"address": h.service.Address().Hex(),
		"admin":   h.service.Admin().Hex(),
		"members": out,
	})
}

// Permissions reports whether an address administers or may use the wallet.
func (h *Handler) Permissions(c *fiber.Ctx) error {
	addr, err := params.Address(c, "address")
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"address":   addr.Hex(),
		"admin":     h.service.IsAdmin(addr),
		"permitted": h.service.IsPermitted(addr),
	})
}

// Balance returns a holder's ledger balance for an asset.
func (h *Handler) Balance(c *fiber.Ctx) error {
	holder, err := params.Address(c, "holder")
	if err != nil {
		return err
	}
	asset, err := params.Address(c, "asset")
	if err != nil {
		return err
	}
	bal, err := h.service.BalanceOf(c.UserContext(), holder, asset)
	if err != nil {
		return Error(err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(bal))
}

// Deposit pulls approved tokens from the caller into custody.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	caller, asset, amount, err := h.parseAmountRequest(c)
	if err != nil {
		return err
	}
	bal, err := h.service.Deposit(c.UserContext(), caller, asset, amount)
	if err != nil {
		return Error(err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(bal))
}

// Withdraw sends tokens out of custody to the caller.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	caller, asset, amount, err := h.parseAmountRequest(c)
	if err != nil {
		return err
	}
	bal, err := h.service.Withdraw(c.UserContext(), caller, asset, amount)
	if err != nil {
		return Error(err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(bal))
}

// Transfer moves ledger balance from the caller to a destination.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return params.BadRequest(err)
	}
	asset, err := params.ParseAddress("asset", req.Asset)
	if err != nil {
		return params.BadRequest(err)
	}
	amount, err := params.ParseAmount("amount", req.Amount)
	if err != nil {
		return params.BadRequest(err)
	}
	destination, err := params.ParseAddress("destination", req.Destination)
	if err != nil {
		return params.BadRequest(err)
	}

	res, err := h.service.Transfer(c.UserContext(), caller, asset, amount, destination)
	if err != nil {
		return Error(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"asset":        res.Asset.Hex(),
		"from":         res.From.Hex(),
		"to":           res.To.Hex(),
		"from_balance": res.FromBalance.Dec(),
		"to_balance":   res.ToBalance.Dec(),
		"timestamp":    res.CompletedAt.Format(time.RFC3339Nano),
	})
}

// Invoke forwards call data to a target with the wallet as sender.
func (h *Handler) Invoke(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req invokeRequest
	if err := c.BodyParser(&req); err != nil {
		return params.BadRequest(err)
	}
	target, err := params.ParseAddress("target", req.Target)
	if err != nil {
		return params.BadRequest(err)
	}
	data, err := params.ParseData("data", req.Data)
	if err != nil {
		return params.BadRequest(err)
	}

	res, err := h.service.Invoke(c.UserContext(), caller, target, data)
	if err != nil {
		return Error(err)
	}
	credited := make([]proceedsResponse, len(res.Credited))
	for i, p := range res.Credited {
		credited[i] = proceedsResponse{Asset: p.Asset.Hex(), Amount: p.Amount.Dec()}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"target":    res.Target.Hex(),
		"output":    hexutil.Encode(res.Output),
		"credited":  credited,
		"timestamp": res.CompletedAt.Format(time.RFC3339Nano),
	})
}

func (h *Handler) parseAmountRequest(c *fiber.Ctx) (common.Address, common.Address, *uint256.Int, error) {
	caller, err := callerOf(c)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return common.Address{}, common.Address{}, nil, params.BadRequest(err)
	}
	asset, err := params.ParseAddress("asset", req.Asset)
	if err != nil {
		return common.Address{}, common.Address{}, nil, params.BadRequest(err)
	}
	amount, err := params.ParseAmount("amount", req.Amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, params.BadRequest(err)
	}
	return caller, asset, amount, nil
}

func callerOf(c *fiber.Ctx) (common.Address, error) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return common.Address{}, fiber.NewError(http.StatusUnauthorized, "caller is required")
	}
	return caller, nil
}

// Error maps wallet failures to HTTP errors.
func Error(err error) error {
	switch {
	case errors.Is(err, ErrReentrantCall):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidDestination), errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvokeFailed):
		// Permission and custody failures raised inside the forwarded call keep their status.
		if mapped := apierr.Status(err); mapped != http.StatusInternalServerError {
			return fiber.NewError(mapped, err.Error())
		}
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	return apierr.From(err)
}
