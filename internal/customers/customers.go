// Package customers provides the minimal customer/portfolio administration
// the back-office core needs as reference lookups. Full customer management
// (KYC, addresses, roles) lives in a separate system.
package customers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/pkg/response"
)

// DefaultCommissionRate applies when a customer has no negotiated rate.
var DefaultCommissionRate = decimal.RequireFromString("0.0010")

type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// CreateCustomer registers a customer and their primary portfolio.
func (s *Service) CreateCustomer(fullName, email string) (*types.Customer, error) {
	customer := &types.Customer{
		CustomerID: uuid.New().String(),
		FullName:   fullName,
		Email:      email,
	}

	portfolio := &types.Portfolio{
		PortfolioID: uuid.New().String(),
		CustomerID:  customer.CustomerID,
		Name:        "Primary",
	}

	if err := s.db.CreateCustomerWithPortfolio(customer, portfolio); err != nil {
		return nil, err
	}
	return customer, nil
}

// GetCustomer resolves a customer by id.
func (s *Service) GetCustomer(customerID string) (*types.Customer, error) {
	return s.db.GetCustomer(customerID)
}

// CommissionRate returns the customer's negotiated commission rate, falling
// back to the house default.
func (s *Service) CommissionRate(customerID string) (decimal.Decimal, error) {
	customer, err := s.db.GetCustomer(customerID)
	if err != nil {
		return decimal.Zero, err
	}
	if customer.CommissionRate != nil {
		return *customer.CommissionRate, nil
	}
	return DefaultCommissionRate, nil
}

// GetPortfolio resolves a portfolio by id.
func (s *Service) GetPortfolio(portfolioID string) (*types.Portfolio, error) {
	return s.db.GetPortfolio(portfolioID)
}

// ListPortfolios returns all of a customer's portfolios.
func (s *Service) ListPortfolios(customerID string) ([]types.Portfolio, error) {
	if _, err := s.db.GetCustomer(customerID); err != nil {
		return nil, err
	}
	return s.db.ListPortfolios(customerID)
}

// CreatePortfolio adds a secondary portfolio for an existing customer.
func (s *Service) CreatePortfolio(customerID, name string) (*types.Portfolio, error) {
	if _, err := s.db.GetCustomer(customerID); err != nil {
		return nil, err
	}
	portfolio := &types.Portfolio{
		PortfolioID: uuid.New().String(),
		CustomerID:  customerID,
		Name:        name,
	}
	if err := s.db.CreatePortfolio(portfolio); err != nil {
		return nil, err
	}
	return portfolio, nil
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateCustomerWithPortfolio(customer *types.Customer, portfolio *types.Portfolio) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(customer).Error; err != nil {
			return err
		}
		return tx.Create(portfolio).Error
	})
}

func (d *Database) GetCustomer(customerID string) (*types.Customer, error) {
	var customer types.Customer
	if err := d.db.Where("customer_id = ?", customerID).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (d *Database) GetPortfolio(portfolioID string) (*types.Portfolio, error) {
	var portfolio types.Portfolio
	if err := d.db.Where("portfolio_id = ?", portfolioID).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrPortfolioNotFound
		}
		return nil, err
	}
	return &portfolio, nil
}

func (d *Database) CreatePortfolio(portfolio *types.Portfolio) error {
	return d.db.Create(portfolio).Error
}

func (d *Database) ListPortfolios(customerID string) ([]types.Portfolio, error) {
	var portfolios []types.Portfolio
	if err := d.db.Where("customer_id = ?", customerID).Order("created_at ASC").Find(&portfolios).Error; err != nil {
		return nil, err
	}
	return portfolios, nil
}

// GinHandlers contains HTTP handlers for customer administration endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

func (h *GinHandlers) CreateCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			FullName string `json:"full_name" binding:"required"`
			Email    string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		customer, err := h.service.CreateCustomer(request.FullName, request.Email)
		response.Handle(c, customer, err)
	}
}

func (h *GinHandlers) GetCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := h.service.GetCustomer(c.Param("customer_id"))
		response.Handle(c, customer, err)
	}
}

func (h *GinHandlers) ListPortfoliosHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		portfolios, err := h.service.ListPortfolios(c.Param("customer_id"))
		response.Handle(c, portfolios, err)
	}
}

func (h *GinHandlers) CreatePortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		portfolio, err := h.service.CreatePortfolio(c.Param("customer_id"), request.Name)
		response.Handle(c, portfolio, err)
	}
}
