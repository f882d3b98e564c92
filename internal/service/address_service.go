package service

import (
	"context"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/geo"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// AreaSource supplies the current service areas.
type AreaSource interface {
	List(ctx context.Context) ([]models.ServiceArea, error)
}

// AddressInput carries address fields. Nil fields are left unchanged on update.
type AddressInput struct {
	Label            *string  `json:"label"`
	FullName         *string  `json:"fullName"`
	Phone            *string  `json:"phone"`
	Street           *string  `json:"street"`
	Landmark         *string  `json:"landmark"`
	City             *string  `json:"city"`
	State            *string  `json:"state"`
	PostalCode       *string  `json:"postalCode"`
	Country          *string  `json:"country"`
	FormattedAddress *string  `json:"formattedAddress"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	PlaceID          *string  `json:"placeId"`
	MapURL           *string  `json:"mapUrl"`
	IsDefault        *bool    `json:"isDefault"`
}

// AddressBook is a user's addresses and the one selected for checkout.
type AddressBook struct {
	Addresses       []models.Address `json:"addresses"`
	SelectedAddress *int64           `json:"selectedAddress"`
}

const notDeliverableMessage = "Sorry, we do not deliver here at the moment."

type AddressService struct {
	addresses      AddressRepository
	users          UserRepository
	areas          AreaSource
	defaultCountry string
	logger         *zap.Logger
}

func NewAddressService(addresses AddressRepository, users UserRepository, areas AreaSource, defaultCountry string) *AddressService {
	return &AddressService{
		addresses:      addresses,
		users:          users,
		areas:          areas,
		defaultCountry: defaultCountry,
		logger:         util.ComponentLogger("addresses"),
	}
}

// List returns the address book. When nothing is selected it selects the
// default address, or else the first one, and persists that choice.
func (s *AddressService) List(ctx context.Context, userID int64) (*AddressBook, error) {
	ctx, span := util.StartSpan(ctx, "AddressService.List")
	defer span.End()

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	addresses, err := s.addresses.ListAddresses(ctx, userID)
	if err != nil {
		return nil, util.RecordError(span, translate(err, "addresses"))
	}
	if addresses == nil {
		addresses = []models.Address{}
	}

	book := &AddressBook{Addresses: addresses, SelectedAddress: user.SelectedAddressID}
	if book.SelectedAddress != nil || len(addresses) == 0 {
		return book, nil
	}

	pick := addresses[0].ID
	for _, a := range addresses {
		if a.IsDefault {
			pick = a.ID
			break
		}
	}
	if err := s.users.SetSelectedAddress(ctx, userID, &pick); err != nil {
		return nil, util.RecordError(span, translate(err, "user"))
	}
	book.SelectedAddress = &pick
	return book, nil
}

// Add stores a new address. Coordinates, when given, must be deliverable.
func (s *AddressService) Add(ctx context.Context, userID int64, in AddressInput) (*models.Address, error) {
	ctx, span := util.StartSpan(ctx, "AddressService.Add")
	defer span.End()

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, translate(err, "user")
	}

	addr := &models.Address{UserID: userID, Country: s.defaultCountry}
	applyAddress(addr, in)
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	if addr.HasCoordinates() {
		if err := s.requireDeliverable(ctx, *addr.Latitude, *addr.Longitude); err != nil {
			return nil, err
		}
	}

	if err := s.addresses.CreateAddress(ctx, addr); err != nil {
		return nil, util.RecordError(span, translate(err, "address"))
	}

	s.logger.Info("Address added", zap.Int64("user_id", userID), zap.Int64("address_id", addr.ID))
	return addr, nil
}

// Update patches an address. Deliverability is rechecked whenever either
// coordinate changes, against the merged position.
func (s *AddressService) Update(ctx context.Context, userID, addressID int64, in AddressInput) (*models.Address, error) {
	ctx, span := util.StartSpan(ctx, "AddressService.Update")
	defer span.End()

	addr, err := s.addresses.GetAddress(ctx, userID, addressID)
	if err != nil {
		return nil, translate(err, "address")
	}

	applyAddress(addr, in)
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	moved := in.Latitude != nil || in.Longitude != nil
	if moved && addr.HasCoordinates() {
		if err := s.requireDeliverable(ctx, *addr.Latitude, *addr.Longitude); err != nil {
			return nil, err
		}
	}
	if err := s.addresses.UpdateAddress(ctx, addr); err != nil {
		return nil, util.RecordError(span, translate(err, "address"))
	}
	return addr, nil
}

// Delete removes an address, clearing the selection if it pointed there.
func (s *AddressService) Delete(ctx context.Context, userID, addressID int64) error {
	ctx, span := util.StartSpan(ctx, "AddressService.Delete")
	defer span.End()

	if err := s.addresses.DeleteAddress(ctx, userID, addressID); err != nil {
		return util.RecordError(span, translate(err, "address"))
	}
	s.logger.Info("Address deleted", zap.Int64("user_id", userID), zap.Int64("address_id", addressID))
	return nil
}

// Select makes addressID the checkout address.
func (s *AddressService) Select(ctx context.Context, userID, addressID int64) error {
	if _, err := s.addresses.GetAddress(ctx, userID, addressID); err != nil {
		return translate(err, "address")
	}
	return translate(s.users.SetSelectedAddress(ctx, userID, &addressID), "user")
}

// Selected returns the selected address, or nil when none is set.
func (s *AddressService) Selected(ctx context.Context, userID int64) (*models.Address, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	if user.SelectedAddressID == nil {
		return nil, nil
	}

	addr, err := s.addresses.GetAddress(ctx, userID, *user.SelectedAddressID)
	if err != nil {
		if apperr.Is(translate(err, "address"), apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return addr, nil
}

// Get returns one of the user's addresses.
func (s *AddressService) Get(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	addr, err := s.addresses.GetAddress(ctx, userID, addressID)
	if err != nil {
		return nil, translate(err, "address")
	}
	return addr, nil
}

// requireDeliverable treats a missing admin configuration as having no areas.
func (s *AddressService) requireDeliverable(ctx context.Context, lat, lon float64) error {
	areas, err := s.areas.List(ctx)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	if !geo.IsDeliverable(lat, lon, areas) {
		return apperr.Ineligible(notDeliverableMessage)
	}
	return nil
}

func applyAddress(addr *models.Address, in AddressInput) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&addr.Label, in.Label)
	set(&addr.FullName, in.FullName)
	set(&addr.Phone, in.Phone)
	set(&addr.Street, in.Street)
	set(&addr.Landmark, in.Landmark)
	set(&addr.City, in.City)
	set(&addr.State, in.State)
	set(&addr.PostalCode, in.PostalCode)
	set(&addr.Country, in.Country)
	set(&addr.FormattedAddress, in.FormattedAddress)
	set(&addr.PlaceID, in.PlaceID)
	set(&addr.MapURL, in.MapURL)

	if in.Latitude != nil {
		lat := *in.Latitude
		addr.Latitude = &lat
	}
	if in.Longitude != nil {
		lon := *in.Longitude
		addr.Longitude = &lon
	}
	if in.IsDefault != nil {
		addr.IsDefault = *in.IsDefault
	}
}

func validateAddress(addr *models.Address) error {
	if addr.FullName == "" || addr.Phone == "" {
		return apperr.Validation("fullName and phone are required")
	}
	if (addr.Latitude == nil) != (addr.Longitude == nil) {
		return apperr.Validation("latitude and longitude must be given together")
	}
	if addr.HasCoordinates() && !geo.ValidCoordinates(*addr.Latitude, *addr.Longitude) {
		return apperr.Validation("invalid coordinates")
	}
	return nil
}
