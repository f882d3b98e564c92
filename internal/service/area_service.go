package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/geo"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AreaInput carries service area fields. Nil fields are left unchanged on
// update; on add, Latitude and Longitude are required and RadiusKm defaults.
type AreaInput struct {
	Label            *string  `json:"label"`
	FormattedAddress *string  `json:"formattedAddress"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	PlaceID          *string  `json:"placeId"`
	MapURL           *string  `json:"mapUrl"`
	RadiusKm         *float64 `json:"radiusKm"`
}

// RemovedAddress identifies an address dropped by revalidation.
type RemovedAddress struct {
	UserID    int64 `json:"userId"`
	AddressID int64 `json:"addressId"`
}

// RevalidationFailure records a user whose addresses could not be revalidated.
type RevalidationFailure struct {
	UserID int64  `json:"userId"`
	Error  string `json:"error"`
}

// RevalidationReport summarizes one pass over all stored addresses.
type RevalidationReport struct {
	UsersScanned      int                   `json:"usersScanned"`
	UsersAffected     int                   `json:"usersAffected"`
	SelectionsCleared int                   `json:"selectionsCleared"`
	RemovedAddresses  []RemovedAddress      `json:"removedAddresses"`
	Failures          []RevalidationFailure `json:"failures,omitempty"`

	errs error
}

// Err combines every per-user failure, nil when all users succeeded.
func (r *RevalidationReport) Err() error {
	return r.errs
}

// AreaMutation is the area list after an edit together with the cascade report.
type AreaMutation struct {
	Areas  []models.ServiceArea `json:"deliverableAreas"`
	Report *RevalidationReport  `json:"revalidation,omitempty"`
}

// AreaService mutates the admin's service areas and keeps stored addresses
// consistent with them.
type AreaService struct {
	settings      SettingsRepository
	addresses     AddressRepository
	defaultRadius float64
	logger        *zap.Logger
}

func NewAreaService(settings SettingsRepository, addresses AddressRepository, defaultRadius float64) *AreaService {
	return &AreaService{
		settings:      settings,
		addresses:     addresses,
		defaultRadius: defaultRadius,
		logger:        util.ComponentLogger("areas"),
	}
}

// List returns the configured service areas in order.
func (s *AreaService) List(ctx context.Context) ([]models.ServiceArea, error) {
	settings, err := s.settings.GetAdminSettings(ctx)
	if err != nil {
		return nil, translate(err, "admin settings")
	}
	if settings.ServiceAreas == nil {
		return []models.ServiceArea{}, nil
	}
	return settings.ServiceAreas, nil
}

// CheckDeliverable reports whether a point lies inside any service area.
func (s *AreaService) CheckDeliverable(ctx context.Context, lat, lon float64) (bool, error) {
	if !geo.ValidCoordinates(lat, lon) {
		return false, apperr.Validation("invalid coordinates")
	}
	areas, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return geo.IsDeliverable(lat, lon, areas), nil
}

// Add appends a service area. Adding never invalidates addresses, so no
// revalidation runs.
func (s *AreaService) Add(ctx context.Context, in AreaInput) ([]models.ServiceArea, error) {
	ctx, span := util.StartSpan(ctx, "AreaService.Add")
	defer span.End()

	if in.Latitude == nil || in.Longitude == nil {
		return nil, apperr.Validation("latitude and longitude are required")
	}
	area := models.ServiceArea{RadiusKm: s.defaultRadius}
	applyArea(&area, in)
	if err := validateArea(area); err != nil {
		return nil, err
	}

	areas, err := s.settings.MutateServiceAreas(ctx, func(current models.ServiceAreas) (models.ServiceAreas, error) {
		return append(current, area), nil
	})
	if err != nil {
		return nil, util.RecordError(span, translate(err, "admin settings"))
	}

	s.logger.Info("Service area added", zap.String("label", area.Label), zap.Float64("radius_km", area.RadiusKm))
	return areas, nil
}

// Update patches the area at index and revalidates every stored address.
func (s *AreaService) Update(ctx context.Context, index int, in AreaInput) (*AreaMutation, error) {
	ctx, span := util.StartSpan(ctx, "AreaService.Update")
	defer span.End()

	areas, err := s.settings.MutateServiceAreas(ctx, func(current models.ServiceAreas) (models.ServiceAreas, error) {
		if index < 0 || index >= len(current) {
			return nil, apperr.NotFound("service area %d not found", index)
		}
		next := append(models.ServiceAreas(nil), current...)
		applyArea(&next[index], in)
		if err := validateArea(next[index]); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return nil, util.RecordError(span, translate(err, "admin settings"))
	}

	s.logger.Info("Service area updated", zap.Int("index", index))
	return s.cascade(ctx, areas)
}

// Delete removes the area at index and revalidates every stored address.
func (s *AreaService) Delete(ctx context.Context, index int) (*AreaMutation, error) {
	ctx, span := util.StartSpan(ctx, "AreaService.Delete")
	defer span.End()

	areas, err := s.settings.MutateServiceAreas(ctx, func(current models.ServiceAreas) (models.ServiceAreas, error) {
		if index < 0 || index >= len(current) {
			return nil, apperr.NotFound("service area %d not found", index)
		}
		next := make(models.ServiceAreas, 0, len(current)-1)
		next = append(next, current[:index]...)
		return append(next, current[index+1:]...), nil
	})
	if err != nil {
		return nil, util.RecordError(span, translate(err, "admin settings"))
	}

	s.logger.Info("Service area deleted", zap.Int("index", index))
	return s.cascade(ctx, areas)
}

// Revalidate runs RevalidateAllAddresses against the current area list.
func (s *AreaService) Revalidate(ctx context.Context) (*RevalidationReport, error) {
	areas, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.RevalidateAllAddresses(ctx, areas)
}

// RevalidateAllAddresses drops every stored address with coordinates outside
// areas, unless the currently stored areas still cover it. Users are processed
// independently; a failing user is recorded in the report and does not stop
// the others.
func (s *AreaService) RevalidateAllAddresses(ctx context.Context, areas []models.ServiceArea) (*RevalidationReport, error) {
	ctx, span := util.StartSpan(ctx, "AreaService.RevalidateAllAddresses")
	defer span.End()

	start := time.Now()
	defer func() {
		util.RevalidationDuration.Observe(time.Since(start).Seconds())
	}()

	owners, err := s.addresses.ListAddressOwners(ctx)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list address owners: %w", err))
	}

	report := &RevalidationReport{RemovedAddresses: []RemovedAddress{}}
	for _, userID := range owners {
		report.UsersScanned++

		removed, cleared, err := s.revalidateUser(ctx, userID, areas)
		if err != nil {
			report.Failures = append(report.Failures, RevalidationFailure{UserID: userID, Error: err.Error()})
			report.errs = multierr.Append(report.errs, fmt.Errorf("user %d: %w", userID, err))
			s.logger.Error("Address revalidation failed", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		if len(removed) == 0 {
			continue
		}

		report.UsersAffected++
		if cleared {
			report.SelectionsCleared++
		}
		for _, id := range removed {
			report.RemovedAddresses = append(report.RemovedAddresses, RemovedAddress{UserID: userID, AddressID: id})
		}
	}

	util.AddressesRevalidatedRemoved.Add(float64(len(report.RemovedAddresses)))
	s.logger.Info("Addresses revalidated",
		zap.Int("users_scanned", report.UsersScanned),
		zap.Int("users_affected", report.UsersAffected),
		zap.Int("removed", len(report.RemovedAddresses)),
		zap.Int("failures", len(report.Failures)))

	return report, nil
}

func (s *AreaService) revalidateUser(ctx context.Context, userID int64, areas []models.ServiceArea) ([]int64, bool, error) {
	addresses, err := s.addresses.ListAddresses(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	var outside []models.Address
	for _, addr := range addresses {
		if !geo.AddressDeliverable(addr, areas) {
			outside = append(outside, addr)
		}
	}
	if len(outside) == 0 {
		return nil, false, nil
	}

	// areas may be stale by now; never drop what the stored areas still cover
	current, err := s.List(ctx)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, err
	}
	var drop []int64
	for _, addr := range outside {
		if !geo.AddressDeliverable(addr, current) {
			drop = append(drop, addr.ID)
		}
	}
	if len(drop) == 0 {
		return nil, false, nil
	}

	cleared, err := s.addresses.RemoveAddresses(ctx, userID, drop)
	if err != nil {
		return nil, false, err
	}
	return drop, cleared, nil
}

func (s *AreaService) cascade(ctx context.Context, areas models.ServiceAreas) (*AreaMutation, error) {
	report, err := s.RevalidateAllAddresses(ctx, areas)
	if err != nil {
		return nil, err
	}
	return &AreaMutation{Areas: areas, Report: report}, nil
}

func applyArea(area *models.ServiceArea, in AreaInput) {
	if in.Label != nil {
		area.Label = strings.TrimSpace(*in.Label)
	}
	if in.FormattedAddress != nil {
		area.FormattedAddress = *in.FormattedAddress
	}
	if in.Latitude != nil {
		area.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		area.Longitude = *in.Longitude
	}
	if in.PlaceID != nil {
		area.PlaceID = *in.PlaceID
	}
	if in.MapURL != nil {
		area.MapURL = *in.MapURL
	}
	if in.RadiusKm != nil {
		area.RadiusKm = *in.RadiusKm
	}
}

func validateArea(area models.ServiceArea) error {
	if !geo.ValidCoordinates(area.Latitude, area.Longitude) {
		return apperr.Validation("invalid service area coordinates")
	}
	if math.IsNaN(area.RadiusKm) || math.IsInf(area.RadiusKm, 0) || area.RadiusKm < 0 {
		return apperr.Validation("radiusKm must be a finite number >= 0")
	}
	return nil
}
