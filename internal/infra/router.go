package infra

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/umalmyha/customers-api/internal/config"
	"github.com/umalmyha/customers-api/internal/handlers"
	"github.com/umalmyha/customers-api/internal/metrics"
	"github.com/umalmyha/customers-api/internal/middleware"
	"github.com/umalmyha/customers-api/internal/service"
	"github.com/umalmyha/customers-api/internal/validation"
)

func Router(customerSvc service.CustomerService, pinger handlers.Pinger, httpCfg config.HTTPCfg) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	v, err := validation.English()
	if err != nil {
		return nil, err
	}
	e.Validator = v

	// Middleware
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logrus.StandardLogger()))
	e.Use(metrics.Middleware())
	if httpCfg.RateLimit > 0 {
		e.Use(middleware.RateLimit(httpCfg.RateLimit, httpCfg.RateBurst))
	}

	// Handlers
	customerHTTPHandler := handlers.NewCustomerHTTPHandler(customerSvc)
	healthHTTPHandler := handlers.NewHealthHTTPHandler(pinger)

	// customers
	customers := e.Group("/customers")
	customers.GET("", customerHTTPHandler.GetAll)
	customers.POST("", customerHTTPHandler.Post)

	// operations
	e.GET("/health", healthHTTPHandler.Get)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return e, nil
}
