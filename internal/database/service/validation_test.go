package service_test

import (
	"strings"
	"testing"

	"github.com/mangrovewatch/mangrove/internal/database/service"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() *types.Registration {
	return &types.Registration{
		Name:     "Asha Rao",
		Email:    "  Asha.Rao@Example.org ",
		Password: "Mangrove1",
		Role:     enum.RoleCommunity,
		Location: "Kochi",
	}
}

func TestValidateRegistration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*types.Registration)
		wantErr bool
	}{
		{name: "valid", modify: func(*types.Registration) {}},
		{name: "name too short", modify: func(r *types.Registration) { r.Name = "A" }, wantErr: true},
		{name: "name with digits", modify: func(r *types.Registration) { r.Name = "Asha 2" }, wantErr: true},
		{name: "accented name", modify: func(r *types.Registration) { r.Name = "José Núñez" }},
		{name: "bad email", modify: func(r *types.Registration) { r.Email = "not-an-email" }, wantErr: true},
		{name: "short password", modify: func(r *types.Registration) { r.Password = "Ab1" }, wantErr: true},
		{name: "password without digit", modify: func(r *types.Registration) { r.Password = "Mangrove" }, wantErr: true},
		{name: "password without upper", modify: func(r *types.Registration) { r.Password = "mangrove1" }, wantErr: true},
		{
			name:    "password over bcrypt limit",
			modify:  func(r *types.Registration) { r.Password = "Mangrove1" + strings.Repeat("x", 64) },
			wantErr: true,
		},
		{name: "password at bcrypt limit", modify: func(r *types.Registration) { r.Password = "Mangrove1" + strings.Repeat("x", 63) }},
		{name: "unknown role", modify: func(r *types.Registration) { r.Role = "admin" }, wantErr: true},
		{name: "NGO role", modify: func(r *types.Registration) { r.Role = enum.RoleNGO }},
		{name: "location too short", modify: func(r *types.Registration) { r.Location = "K" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := validRegistration()
			tt.modify(reg)

			err := service.ValidateRegistration(reg)
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "asha.rao@example.org", reg.Email)
		})
	}
}

func TestValidateReport(t *testing.T) {
	t.Parallel()

	valid := func() *types.NewReport {
		return &types.NewReport{
			IncidentType: enum.IncidentTypeCutting,
			Description:  "Trees cut near the estuary",
			PhotoURL:     "https://img.example.org/a.jpg",
			Latitude:     utils.Ptr(9.93),
			Longitude:    utils.Ptr(76.26),
		}
	}

	tests := []struct {
		name    string
		modify  func(*types.NewReport)
		wantErr bool
	}{
		{name: "valid", modify: func(*types.NewReport) {}},
		{name: "unknown incident", modify: func(r *types.NewReport) { r.IncidentType = "fire" }, wantErr: true},
		{name: "short description", modify: func(r *types.NewReport) { r.Description = "short" }, wantErr: true},
		{
			name:    "padding does not count toward length",
			modify:  func(r *types.NewReport) { r.Description = "  cut    here  \n\n " },
			wantErr: true,
		},
		{
			name:    "long description",
			modify:  func(r *types.NewReport) { r.Description = strings.Repeat("a", 1001) },
			wantErr: true,
		},
		{name: "relative photo url", modify: func(r *types.NewReport) { r.PhotoURL = "/a.jpg" }, wantErr: true},
		{name: "latitude out of range", modify: func(r *types.NewReport) { r.Latitude = utils.Ptr(91.0) }, wantErr: true},
		{name: "longitude out of range", modify: func(r *types.NewReport) { r.Longitude = utils.Ptr(-181.0) }, wantErr: true},
		{name: "missing coordinates", modify: func(r *types.NewReport) { r.Latitude, r.Longitude = nil, nil }, wantErr: true},
		{name: "missing longitude", modify: func(r *types.NewReport) { r.Longitude = nil }, wantErr: true},
		{name: "equator and meridian", modify: func(r *types.NewReport) { r.Latitude, r.Longitude = utils.Ptr(0.0), utils.Ptr(0.0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := valid()
			tt.modify(in)

			err := service.ValidateReport(in)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUpload(t *testing.T) {
	t.Parallel()

	valid := func() *types.NewUpload {
		return &types.NewUpload{
			Title:       "Sunrise roots",
			Description: "Healthy prop roots at low tide",
			ImageURL:    "https://img.example.org/b.png",
			Category:    enum.CategoryMangroveHealth,
			Tags:        []string{" Roots ", "roots", "tide"},
		}
	}

	t.Run("tags are normalized and deduplicated", func(t *testing.T) {
		t.Parallel()

		in := valid()
		require.NoError(t, service.ValidateUpload(in))
		assert.Equal(t, []string{"roots", "tide"}, in.Tags)
	})

	tests := []struct {
		name   string
		modify func(*types.NewUpload)
	}{
		{name: "short title", modify: func(u *types.NewUpload) { u.Title = "ab" }},
		{name: "long description", modify: func(u *types.NewUpload) { u.Description = strings.Repeat("b", 501) }},
		{name: "unknown category", modify: func(u *types.NewUpload) { u.Category = "birds" }},
		{name: "too many tags", modify: func(u *types.NewUpload) { u.Tags = strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",") }},
		{name: "long tag", modify: func(u *types.NewUpload) { u.Tags = []string{strings.Repeat("t", 21)} }},
		{name: "latitude without longitude", modify: func(u *types.NewUpload) { u.Latitude = utils.Ptr(1.0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := valid()
			tt.modify(in)
			assert.ErrorIs(t, service.ValidateUpload(in), types.ErrValidation)
		})
	}
}

func TestValidateEdit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    enum.SubmissionKind
		edit    *types.SubmissionEdit
		wantErr bool
	}{
		{
			name: "report incident type",
			kind: enum.SubmissionKindReport,
			edit: &types.SubmissionEdit{IncidentType: utils.Ptr(enum.IncidentTypePollution)},
		},
		{
			name:    "report title",
			kind:    enum.SubmissionKindReport,
			edit:    &types.SubmissionEdit{Title: utils.Ptr("New title")},
			wantErr: true,
		},
		{
			name:    "upload incident type",
			kind:    enum.SubmissionKindUpload,
			edit:    &types.SubmissionEdit{IncidentType: utils.Ptr(enum.IncidentTypeDumping)},
			wantErr: true,
		},
		{
			name: "upload photo",
			kind: enum.SubmissionKindUpload,
			edit: &types.SubmissionEdit{ImageURL: utils.Ptr("https://img.example.org/c.jpg")},
		},
		{
			name:    "single coordinate",
			kind:    enum.SubmissionKindReport,
			edit:    &types.SubmissionEdit{Latitude: utils.Ptr(10.0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := service.ValidateEdit(tt.kind, tt.edit)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateReview(t *testing.T) {
	t.Parallel()

	require.NoError(t, service.ValidateReview("looks good", nil))
	require.NoError(t, service.ValidateReview("", utils.Ptr(0)))
	require.NoError(t, service.ValidateReview("", utils.Ptr(100)))
	require.ErrorIs(t, service.ValidateReview("", utils.Ptr(101)), types.ErrValidation)
	require.ErrorIs(t, service.ValidateReview("", utils.Ptr(-1)), types.ErrValidation)
	require.ErrorIs(t, service.ValidateReview(strings.Repeat("n", 501), nil), types.ErrValidation)
}

func TestValidateFlagAndBan(t *testing.T) {
	t.Parallel()

	require.NoError(t, service.ValidateFlag(enum.FlagReasonSpam, ""))
	require.ErrorIs(t, service.ValidateFlag("boring", ""), types.ErrValidation)
	require.ErrorIs(t, service.ValidateFlag(enum.FlagReasonSpam, strings.Repeat("x", 201)), types.ErrValidation)

	require.NoError(t, service.ValidateBanReason("repeated spam"))
	require.ErrorIs(t, service.ValidateBanReason("spam"), types.ErrValidation)
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	phone, err := service.NormalizePhone("", "IN")
	require.NoError(t, err)
	assert.Empty(t, phone)

	phone, err = service.NormalizePhone("081234 56789", "IN")
	require.NoError(t, err)
	assert.Equal(t, "+918123456789", phone)

	phone, err = service.NormalizePhone("+1 650-253-0000", "IN")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", phone)

	_, err = service.NormalizePhone("12", "IN")
	require.ErrorIs(t, err, types.ErrValidation)
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	page, limit := service.NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, service.DefaultPageSize, limit)

	page, limit = service.NormalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, service.MaxPageSize, limit)
}
