package service

import (
	"context"

	"github.com/umalmyha/customers-api/internal/model"
	"github.com/umalmyha/customers-api/internal/repository"
)

type CustomerService interface {
	FindAll(context.Context) ([]*model.Customer, error)
	Create(context.Context, *model.Customer) (*model.Customer, error)
}

type customerService struct {
	customerRepo repository.CustomerRepository
}

func NewCustomerService(customerRepo repository.CustomerRepository) CustomerService {
	return &customerService{customerRepo: customerRepo}
}

func (s *customerService) FindAll(ctx context.Context) ([]*model.Customer, error) {
	customers, err := s.customerRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// Create always stores customer as a new one, identifier is assigned by storage
func (s *customerService) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	c.ID = 0
	if err := s.customerRepo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
