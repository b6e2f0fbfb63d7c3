package routes

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/treasury/internal/apierr"
	"github.com/congo-pay/treasury/internal/middleware"
	"github.com/congo-pay/treasury/internal/params"
	"github.com/congo-pay/treasury/internal/token"
)

// RegisterTokenRoutes wires the fungible token endpoints. Mutations run under
// the caller middleware chain passed as mutating.
func RegisterTokenRoutes(r fiber.Router, svc token.Service, mutating ...fiber.Handler) {
	h := &tokenHandler{service: svc}
	r.Get("/tokens", h.List)
	r.Get("/tokens/:token/balances/:holder", h.Balance)
	r.Get("/tokens/:token/allowances/:owner/:spender", h.Allowance)

	r.Post("/tokens", guarded(mutating, h.Deploy)...)
	r.Post("/tokens/:token/approve", guarded(mutating, h.Approve)...)
	r.Post("/tokens/:token/transfer", guarded(mutating, h.Transfer)...)
}

type tokenHandler struct {
	service token.Service
}

type deployTokenRequest struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Supply   string `json:"supply"`
}

type tokenMoveRequest struct {
	Counterparty string `json:"counterparty"`
	Amount       string `json:"amount"`
}

type tokenResponse struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	Deployer    string `json:"deployer"`
}

func toTokenResponse(t token.Token) tokenResponse {
	return tokenResponse{
		Address:     t.Address.Hex(),
		Symbol:      t.Symbol,
		Decimals:    t.Decimals,
		TotalSupply: t.TotalSupply.Dec(),
		Deployer:    t.Deployer.Hex(),
	}
}

// Deploy mints a new token whose supply is held by the caller.
func (h *tokenHandler) Deploy(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "caller is required")
	}
	var req deployTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return params.BadRequest(err)
	}
	supply, err := params.ParseAmount("supply", req.Supply)
	if err != nil {
		return params.BadRequest(err)
	}
	t, err := h.service.Deploy(c.UserContext(), caller, req.Symbol, req.Decimals, supply)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(toTokenResponse(t))
}

// List returns every deployed token.
func (h *tokenHandler) List(c *fiber.Ctx) error {
	assets, err := h.service.Assets(c.UserContext())
	if err != nil {
		return apierr.From(err)
	}
	out := make([]tokenResponse, 0, len(assets))
	for _, addr := range assets {
		t, err := h.service.Get(c.UserContext(), addr)
		if err != nil {
			return apierr.From(err)
		}
		out = append(out, toTokenResponse(t))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Balance returns a holder's token balance.
func (h *tokenHandler) Balance(c *fiber.Ctx) error {
	tok, err := params.Address(c, "token")
	if err != nil {
		return err
	}
	holder, err := params.Address(c, "holder")
	if err != nil {
		return err
	}
	bal, err := h.service.BalanceOf(c.UserContext(), tok, holder)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"token":  tok.Hex(),
		"holder": holder.Hex(),
		"amount": bal.Dec(),
	})
}

// Allowance returns what spender may still move out of owner's balance.
func (h *tokenHandler) Allowance(c *fiber.Ctx) error {
	tok, err := params.Address(c, "token")
	if err != nil {
		return err
	}
	owner, err := params.Address(c, "owner")
	if err != nil {
		return err
	}
	spender, err := params.Address(c, "spender")
	if err != nil {
		return err
	}
	allowance, err := h.service.Allowance(c.UserContext(), tok, owner, spender)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"token":   tok.Hex(),
		"owner":   owner.Hex(),
		"spender": spender.Hex(),
		"amount":  allowance.Dec(),
	})
}

// Approve sets the allowance the caller grants to the counterparty.
func (h *tokenHandler) Approve(c *fiber.Ctx) error {
	tok, caller, counterparty, req, err := h.parseMove(c)
	if err != nil {
		return err
	}
	amount, err := params.ParseAmount("amount", req.Amount)
	if err != nil {
		return params.BadRequest(err)
	}
	if err := h.service.Approve(c.UserContext(), tok, caller, counterparty, amount); err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"token":   tok.Hex(),
		"owner":   caller.Hex(),
		"spender": counterparty.Hex(),
		"amount":  amount.Dec(),
	})
}

// Transfer sends tokens from the caller to the counterparty.
func (h *tokenHandler) Transfer(c *fiber.Ctx) error {
	tok, caller, counterparty, req, err := h.parseMove(c)
	if err != nil {
		return err
	}
	amount, err := params.ParseAmount("amount", req.Amount)
	if err != nil {
		return params.BadRequest(err)
	}
	if err := h.service.Transfer(c.UserContext(), tok, caller, counterparty, amount); err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"token":  tok.Hex(),
		"from":   caller.Hex(),
		"to":     counterparty.Hex(),
		"amount": amount.Dec(),
	})
}

func (h *tokenHandler) parseMove(c *fiber.Ctx) (common.Address, common.Address, common.Address, tokenMoveRequest, error) {
	var req tokenMoveRequest
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return common.Address{}, common.Address{}, common.Address{}, req, fiber.NewError(http.StatusUnauthorized, "caller is required")
	}
	tok, err := params.Address(c, "token")
	if err != nil {
		return common.Address{}, common.Address{}, common.Address{}, req, err
	}
	if err := c.BodyParser(&req); err != nil {
		return common.Address{}, common.Address{}, common.Address{}, req, params.BadRequest(err)
	}
	counterparty, err := params.ParseAddress("counterparty", req.Counterparty)
	if err != nil {
		return common.Address{}, common.Address{}, common.Address{}, req, params.BadRequest(err)
	}
	return tok, caller, counterparty, req, nil
}
