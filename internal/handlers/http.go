package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/umalmyha/customers-api/internal/model"
	"github.com/umalmyha/customers-api/internal/service"
)

const healthPingTimeout = 2 * time.Second

type newCustomer struct {
	Name  string  `json:"name" validate:"required,max=255"`
	Email *string `json:"email" validate:"omitempty,max=255"`
}

type health struct {
	Status string `json:"status"`
}

// CustomerHTTPHandler is http handler for customer endpoint
type CustomerHTTPHandler struct {
	customerSvc service.CustomerService
}

// NewCustomerHTTPHandler builds new CustomerHTTPHandler
func NewCustomerHTTPHandler(customerSvc service.CustomerService) *CustomerHTTPHandler {
	return &CustomerHTTPHandler{customerSvc: customerSvc}
}

// GetAll gets all customers
// @Summary     Get all customers
// @Description Returns all customers
// @Tags        customers
// @Produce     json
// @Success     200    {array}  model.Customer
// @Failure     500    {object} echo.HTTPError
// @Router      /customers [get]
func (h *CustomerHTTPHandler) GetAll(c echo.Context) error {
	customers, err := h.customerSvc.FindAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customers)
}

// Post creates new customer
// @Summary     New Customer
// @Description Creates new customer, identifier is generated
// @Tags        customers
// @Accept		json
// @Param 		newCustomer body newCustomer true "Data for new customer"
// @Success     200    		"Successful status code"
// @Failure     400    		{object} echo.HTTPError
// @Failure     409    		{object} echo.HTTPError
// @Failure     500    		{object} echo.HTTPError
// @Router      /customers [post]
func (h *CustomerHTTPHandler) Post(c echo.Context) error {
	var nc newCustomer
	if err := c.Bind(&nc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(&nc); err != nil {
		return err
	}

	_, err := h.customerSvc.Create(c.Request().Context(), &model.Customer{
		Name:  nc.Name,
		Email: nc.Email,
	})
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}

// Pinger checks datasource availability
type Pinger interface {
	Ping(context.Context) error
}

// HealthHTTPHandler reports service readiness
type HealthHTTPHandler struct {
	pinger Pinger
}

func NewHealthHTTPHandler(pinger Pinger) *HealthHTTPHandler {
	return &HealthHTTPHandler{pinger: pinger}
}

// Get reports whether database is reachable
// @Summary     Health
// @Tags        health
// @Produce     json
// @Success     200    {object} health
// @Failure     503    {object} echo.HTTPError
// @Router      /health [get]
func (h *HealthHTTPHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable).SetInternal(err)
	}
	return c.JSON(http.StatusOK, &health{Status: "ok"})
}
