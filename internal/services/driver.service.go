package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/theru/fleet-ads/internal/model"
	"github.com/theru/fleet-ads/internal/repository"
)

type DriverRepository interface {
	Create(ctx context.Context, d *model.Driver) (*model.Driver, error)
	GetByID(ctx context.Context, id int64) (*model.Driver, error)
	List(ctx context.Context, f model.DriverFilter) ([]*model.Driver, int64, error)
	Update(ctx context.Context, id int64, p model.DriverUpdateRequest) (*model.Driver, error)
	Delete(ctx context.Context, id int64) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// driverDeviceDetacher is the slice of the device repository the driver
// service needs on delete.
type driverDeviceDetacher interface {
	ClearDriverRef(ctx context.Context, driverID int64) (int64, error)
}

type DriverService struct {
	driverRepo DriverRepository
	deviceRepo driverDeviceDetacher
}

func NewDriverService(driverRepo DriverRepository, deviceRepo driverDeviceDetacher) *DriverService {
	return &DriverService{
		driverRepo: driverRepo,
		deviceRepo: deviceRepo,
	}
}

func (s *DriverService) Create(ctx context.Context, p model.DriverCreateRequest) (*model.Driver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.driverRepo.Create(ctx, &model.Driver{
		Name:          p.Name,
		Phone:         p.Phone,
		Email:         p.Email,
		LicenseNumber: p.LicenseNumber,
		City:          p.City,
		Status:        model.DriverStatusActive,
	})
}

func (s *DriverService) Get(ctx context.Context, id int64) (*model.Driver, error) {
	driver, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

func (s *DriverService) List(ctx context.Context, f model.DriverFilter) ([]*model.Driver, int64, error) {
	return s.driverRepo.List(ctx, f)
}

func (s *DriverService) Update(ctx context.Context, id int64, p model.DriverUpdateRequest) (*model.Driver, error) {
	driver, err := s.driverRepo.Update(ctx, id, p)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

// Delete removes a driver and detaches their devices in one transaction.
// Devices survive with driver_id set to NULL.
func (s *DriverService) Delete(ctx context.Context, id int64) error {
	err := s.driverRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.deviceRepo.ClearDriverRef(ctx, id); err != nil {
			return fmt.Errorf("detach devices: %w", err)
		}
		return s.driverRepo.Delete(ctx, id)
	})
	if errors.Is(err, repository.ErrDriverNotFound) {
		return ErrNotFound
	}
	return err
}
