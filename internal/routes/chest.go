package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/treasury/internal/apierr"
	"github.com/congo-pay/treasury/internal/chest"
	"github.com/congo-pay/treasury/internal/middleware"
	"github.com/congo-pay/treasury/internal/params"
)

// RegisterChestRoutes wires the treasure chest endpoints.
func RegisterChestRoutes(r fiber.Router, svc *chest.Service, mutating ...fiber.Handler) {
	h := &chestHandler{service: svc}
	r.Get("/chests", h.List)
	r.Get("/chests/:address", h.Get)

	r.Post("/chests", guarded(mutating, h.Deploy)...)
	r.Post("/chests/:address/unbury", guarded(mutating, h.Unbury)...)
	r.Post("/chests/:address/open", guarded(mutating, h.Open)...)
}

type chestHandler struct {
	service *chest.Service
}

type deployChestRequest struct {
	Token string `json:"token"`
}

type chestResponse struct {
	Address   string `json:"address"`
	Token     string `json:"token"`
	Owner     string `json:"owner"`
	Buried    bool   `json:"buried"`
	Balance   string `json:"balance,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toChestResponse(c chest.Chest) chestResponse {
	return chestResponse{
		Address:   c.Address.Hex(),
		Token:     c.Token.Hex(),
		Owner:     c.Owner.Hex(),
		Buried:    c.Buried,
		CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (h *chestHandler) Deploy(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "caller is required")
	}
	var req deployChestRequest
	if err := c.BodyParser(&req); err != nil {
		return params.BadRequest(err)
	}
	tok, err := params.ParseAddress("token", req.Token)
	if err != nil {
		return params.BadRequest(err)
	}
	created, err := h.service.Deploy(c.UserContext(), caller, tok)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(toChestResponse(created))
}

func (h *chestHandler) List(c *fiber.Ctx) error {
	chests, err := h.service.List(c.UserContext())
	if err != nil {
		return apierr.From(err)
	}
	out := make([]chestResponse, len(chests))
	for i, ch := range chests {
		out[i] = toChestResponse(ch)
	}
	return c.Status(http.StatusOK).JSON(out)
}

func (h *chestHandler) Get(c *fiber.Ctx) error {
	addr, err := params.Address(c, "address")
	if err != nil {
		return err
	}
	found, err := h.service.Get(c.UserContext(), addr)
	if err != nil {
		return apierr.From(err)
	}
	bal, err := h.service.Balance(c.UserContext(), addr)
	if err != nil {
		return apierr.From(err)
	}
	resp := toChestResponse(found)
	resp.Balance = bal.Dec()
	return c.Status(http.StatusOK).JSON(resp)
}

func (h *chestHandler) Unbury(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "caller is required")
	}
	addr, err := params.Address(c, "address")
	if err != nil {
		return err
	}
	updated, err := h.service.Unbury(c.UserContext(), caller, addr)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toChestResponse(updated))
}

func (h *chestHandler) Open(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "caller is required")
	}
	addr, err := params.Address(c, "address")
	if err != nil {
		return err
	}
	payout, err := h.service.Open(c.UserContext(), caller, addr)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"chest":     payout.Chest.Hex(),
		"token":     payout.Token.Hex(),
		"recipient": payout.Recipient.Hex(),
		"amount":    payout.Amount.Dec(),
		"timestamp": payout.OpenedAt.Format(time.RFC3339Nano),
	})
}
