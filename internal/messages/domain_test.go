package messages

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest_Validate(t *testing.T) {
	listingID := uuid.New()
	checkInID := uuid.New()

	tests := []struct {
		name    string
		req     SendRequest
		wantErr error
	}{
		{
			name: "text with content",
			req:  SendRequest{Type: TypeText, Content: "hello"},
		},
		{
			name:    "text with only whitespace",
			req:     SendRequest{Type: TypeText, Content: " \t\n"},
			wantErr: ErrEmptyContent,
		},
		{
			name: "text with attachment and no content",
			req:  SendRequest{Type: TypeText, ImageURL: "uploads/a.jpg"},
		},
		{
			name:    "unknown type",
			req:     SendRequest{Type: "video", Content: "x"},
			wantErr: ErrInvalidType,
		},
		{
			name:    "image without url",
			req:     SendRequest{Type: TypeImage},
			wantErr: ErrImageRequired,
		},
		{
			name: "image with url",
			req:  SendRequest{Type: TypeImage, ImageURL: "uploads/b.jpg"},
		},
		{
			name:    "location with one coordinate",
			req:     SendRequest{Type: TypeLocation, Coordinates: []float64{10}},
			wantErr: ErrInvalidCoordinates,
		},
		{
			name:    "location longitude out of range",
			req:     SendRequest{Type: TypeLocation, Coordinates: []float64{200, 10}},
			wantErr: ErrInvalidCoordinates,
		},
		{
			name:    "location latitude out of range",
			req:     SendRequest{Type: TypeLocation, Coordinates: []float64{10, 91}},
			wantErr: ErrInvalidCoordinates,
		},
		{
			name: "location at the boundary",
			req:  SendRequest{Type: TypeLocation, Coordinates: []float64{-180, 90}},
		},
		{
			name:    "marketplace item without listing",
			req:     SendRequest{Type: TypeMarketplaceItem},
			wantErr: ErrListingRequired,
		},
		{
			name: "marketplace offer with listing",
			req:  SendRequest{Type: TypeMarketplaceOffer, ListingID: &listingID},
		},
		{
			name:    "checkin with neither id nor coordinates",
			req:     SendRequest{Type: TypeCheckin},
			wantErr: ErrCheckInRequired,
		},
		{
			name: "checkin with id",
			req:  SendRequest{Type: TypeCheckin, CheckInID: &checkInID},
		},
		{
			name: "checkin from coordinates",
			req:  SendRequest{Type: TypeCheckin, Coordinates: []float64{13.4, 52.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestType_Valid(t *testing.T) {
	for _, typ := range []Type{TypeText, TypeImage, TypeLocation, TypeMarketplaceItem, TypeMarketplaceOffer, TypeCheckin} {
		assert.True(t, typ.Valid(), string(typ))
	}
	assert.False(t, Type("").Valid())
	assert.False(t, Type("sticker").Valid())
}
