package service

import (
	"context"
	"math"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/geo"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kmNorth returns the latitude km north of lat.
func kmNorth(lat, km float64) float64 {
	return lat + (km/geo.EarthRadiusKm)*180/math.Pi
}

func addAddressAt(t *testing.T, f *fakeStore, userID int64, lat, lon *float64) *models.Address {
	t.Helper()
	a := &models.Address{UserID: userID, FullName: "Asha", Phone: "9000000000", Latitude: lat, Longitude: lon}
	require.NoError(t, f.CreateAddress(context.Background(), a))
	return a
}

func TestDeleteOnlyAreaRemovesSelectedAddress(t *testing.T) {
	f := newFakeStore()
	f.setAreas(kolkataArea)
	user := addUser(f, "Asha")
	addr := addAddressAt(t, f, user.ID, ptr(kmNorth(22.57, 1)), ptr(88.36))
	require.NoError(t, f.SetSelectedAddress(context.Background(), user.ID, &addr.ID))

	svc := NewAreaService(f, f, 5)
	mutation, err := svc.Delete(context.Background(), 0)
	require.NoError(t, err)

	assert.Empty(t, mutation.Areas)
	assert.Equal(t, 1, mutation.Report.UsersAffected)
	assert.Equal(t, 1, mutation.Report.SelectionsCleared)
	assert.Equal(t, []RemovedAddress{{UserID: user.ID, AddressID: addr.ID}}, mutation.Report.RemovedAddresses)

	left, err := f.ListAddresses(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	u, err := f.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Nil(t, u.SelectedAddressID)
}

func TestRevalidateKeepsLegacyAndCoveredAddresses(t *testing.T) {
	f := newFakeStore()
	user := addUser(f, "Asha")
	inside := addAddressAt(t, f, user.ID, ptr(kmNorth(22.57, 2)), ptr(88.36))
	legacy := addAddressAt(t, f, user.ID, nil, nil)
	outside := addAddressAt(t, f, user.ID, ptr(kmNorth(22.57, 9)), ptr(88.36))
	require.NoError(t, f.SetSelectedAddress(context.Background(), user.ID, &inside.ID))

	svc := NewAreaService(f, f, 5)
	report, err := svc.RevalidateAllAddresses(context.Background(), []models.ServiceArea{kolkataArea})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 1, report.UsersScanned)
	assert.Equal(t, 0, report.SelectionsCleared)
	assert.Equal(t, []RemovedAddress{{UserID: user.ID, AddressID: outside.ID}}, report.RemovedAddresses)

	left, _ := f.ListAddresses(context.Background(), user.ID)
	ids := []int64{}
	for _, a := range left {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []int64{inside.ID, legacy.ID}, ids)
}

func TestRevalidateContinuesPastFailingUser(t *testing.T) {
	f := newFakeStore()
	broken := addUser(f, "Broken")
	ok := addUser(f, "Okay")
	f.listAddressErr[broken.ID] = errBoom
	addAddressAt(t, f, ok.ID, ptr(10.0), ptr(10.0))

	svc := NewAreaService(f, f, 5)
	report, err := svc.RevalidateAllAddresses(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.UsersScanned)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, broken.ID, report.Failures[0].UserID)
	assert.ErrorIs(t, report.Err(), errBoom)
	assert.Len(t, report.RemovedAddresses, 1)
}

func TestAddAreaDoesNotCascade(t *testing.T) {
	f := newFakeStore()
	f.setAreas()
	user := addUser(f, "Asha")
	addAddressAt(t, f, user.ID, ptr(40.0), ptr(-70.0))

	svc := NewAreaService(f, f, 5)
	areas, err := svc.Add(context.Background(), AreaInput{Label: ptr("Kolkata"), Latitude: ptr(22.57), Longitude: ptr(88.36)})
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, 5.0, areas[0].RadiusKm)

	left, _ := f.ListAddresses(context.Background(), user.ID)
	assert.Len(t, left, 1)

	_, err = svc.Add(context.Background(), AreaInput{Label: ptr("no coords")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateAreaShrinkCascades(t *testing.T) {
	f := newFakeStore()
	f.setAreas(kolkataArea)
	user := addUser(f, "Asha")
	near := addAddressAt(t, f, user.ID, ptr(kmNorth(22.57, 1)), ptr(88.36))
	far := addAddressAt(t, f, user.ID, ptr(kmNorth(22.57, 4)), ptr(88.36))

	svc := NewAreaService(f, f, 5)
	mutation, err := svc.Update(context.Background(), 0, AreaInput{RadiusKm: ptr(2.0)})
	require.NoError(t, err)

	assert.Equal(t, 2.0, mutation.Areas[0].RadiusKm)
	assert.Equal(t, "Kolkata", mutation.Areas[0].Label)
	assert.Equal(t, []RemovedAddress{{UserID: user.ID, AddressID: far.ID}}, mutation.Report.RemovedAddresses)

	_, err = f.GetAddress(context.Background(), user.ID, near.ID)
	assert.NoError(t, err)
}

func TestAreaIndexOutOfRange(t *testing.T) {
	f := newFakeStore()
	f.setAreas(kolkataArea)
	svc := NewAreaService(f, f, 5)

	_, err := svc.Update(context.Background(), 3, AreaInput{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.Delete(context.Background(), -1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Len(t, f.admin.ServiceAreas, 1)
}

func TestAreaRadiusMustBeFinite(t *testing.T) {
	f := newFakeStore()
	f.setAreas(kolkataArea)
	svc := NewAreaService(f, f, 5)
	ctx := context.Background()

	for _, r := range []float64{math.NaN(), math.Inf(1), -1} {
		_, err := svc.Add(ctx, AreaInput{Latitude: ptr(19.07), Longitude: ptr(72.87), RadiusKm: ptr(r)})
		assert.True(t, apperr.Is(err, apperr.KindValidation), "radius %v", r)

		_, err = svc.Update(ctx, 0, AreaInput{RadiusKm: ptr(r)})
		assert.True(t, apperr.Is(err, apperr.KindValidation), "radius %v", r)
	}
	require.Len(t, f.admin.ServiceAreas, 1)
	assert.Equal(t, 5.0, f.admin.ServiceAreas[0].RadiusKm)
}

func TestRevalidateSparesAddressCoveredByStoredAreas(t *testing.T) {
	f := newFakeStore()
	// an area added after the caller read its list
	f.setAreas(kolkataArea)
	user := addUser(f, "Asha")
	covered := addAddressAt(t, f, user.ID, ptr(kmNorth(22.57, 1)), ptr(88.36))
	outside := addAddressAt(t, f, user.ID, ptr(10.0), ptr(10.0))

	svc := NewAreaService(f, f, 5)
	report, err := svc.RevalidateAllAddresses(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []RemovedAddress{{UserID: user.ID, AddressID: outside.ID}}, report.RemovedAddresses)
	_, err = f.GetAddress(context.Background(), user.ID, covered.ID)
	assert.NoError(t, err)
}

func TestCheckDeliverable(t *testing.T) {
	f := newFakeStore()
	svc := NewAreaService(f, f, 5)

	_, err := svc.CheckDeliverable(context.Background(), 22.57, 88.36)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	f.setAreas(kolkataArea)
	ok, err := svc.CheckDeliverable(context.Background(), kmNorth(22.57, 4.9), 88.36)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CheckDeliverable(context.Background(), kmNorth(22.57, 5.1), 88.36)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.CheckDeliverable(context.Background(), 100, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
