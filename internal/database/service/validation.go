package service

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/scoring"
	"github.com/mangrovewatch/mangrove/pkg/utils"
)

const (
	MinNameLength        = 2
	MaxNameLength        = 50
	MinPasswordLength    = 6
	MaxPasswordBytes     = 72 // bcrypt input limit
	MinLocationLength    = 2
	MaxLocationLength    = 100
	MinDescriptionLength = 10
	MaxReportDescription = 1000
	MaxUploadDescription = 500
	MinTitleLength       = 3
	MaxTitleLength       = 100
	MaxTags              = 10
	MaxTagLength         = 20
	MaxNotesLength       = 500
	MaxFlagNotesLength   = 200
	MinBanReasonLength   = 5
	MaxBanReasonLength   = 200

	DefaultPageSize = 20
	MaxPageSize     = 100
)

var namePattern = regexp.MustCompile(`^[\p{L} ]+$`)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrValidation, fmt.Sprintf(format, args...))
}

// ValidateRegistration checks account fields before anything is stored.
// The email is lowercased and the other strings are trimmed in place.
func ValidateRegistration(reg *types.Registration) error {
	reg.Name = utils.CompressAllWhitespace(reg.Name)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.Location = strings.TrimSpace(reg.Location)
	reg.Phone = strings.TrimSpace(reg.Phone)

	if err := validateName(reg.Name); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil || !strings.Contains(reg.Email, ".") {
		return invalid("email address is invalid")
	}
	if err := validatePassword(reg.Password); err != nil {
		return err
	}
	if !reg.Role.IsValid() {
		return invalid("role must be community, NGO or govt")
	}
	return validateLocation(reg.Location)
}

// ValidateProfileUpdate checks the fields of a profile update that are set.
func ValidateProfileUpdate(update *types.ProfileUpdate) error {
	if update.Name != nil {
		*update.Name = utils.CompressAllWhitespace(*update.Name)
		if err := validateName(*update.Name); err != nil {
			return err
		}
	}
	if update.Location != nil {
		*update.Location = strings.TrimSpace(*update.Location)
		if err := validateLocation(*update.Location); err != nil {
			return err
		}
	}
	return nil
}

func validateName(name string) error {
	n := utils.RuneLen(name)
	if n < MinNameLength || n > MaxNameLength || !namePattern.MatchString(name) {
		return invalid("name must be %d-%d letters or spaces", MinNameLength, MaxNameLength)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return invalid("password must be at most %d bytes", MaxPasswordBytes)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	if !upper || !lower || !digit {
		return invalid("password must contain an uppercase letter, a lowercase letter and a digit")
	}
	return nil
}

func validateLocation(location string) error {
	n := utils.RuneLen(location)
	if n < MinLocationLength || n > MaxLocationLength {
		return invalid("location must be %d-%d characters", MinLocationLength, MaxLocationLength)
	}
	return nil
}

// ValidateReport checks a new incident report.
func ValidateReport(in *types.NewReport) error {
	in.Description = utils.CompressWhitespacePreserveNewlines(in.Description)
	in.PhotoURL = strings.TrimSpace(in.PhotoURL)

	if !in.IncidentType.IsValid() {
		return invalid("unknown incident type %q", in.IncidentType)
	}
	if err := validateDescription(in.Description, MaxReportDescription); err != nil {
		return err
	}
	if err := validateImageURL(in.PhotoURL); err != nil {
		return err
	}
	return validateCoordinates(in.Latitude, in.Longitude, true)
}

// ValidateUpload checks a new photo upload.
func ValidateUpload(in *types.NewUpload) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = utils.CompressWhitespacePreserveNewlines(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if err := validateDescription(in.Description, MaxUploadDescription); err != nil {
		return err
	}
	if err := validateImageURL(in.ImageURL); err != nil {
		return err
	}
	if !in.Category.IsValid() {
		return invalid("unknown category %q", in.Category)
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return err
	}
	in.Tags = tags

	return validateCoordinates(in.Latitude, in.Longitude, false)
}

// ValidateEdit checks the fields of an edit that are set against the submission kind.
func ValidateEdit(kind enum.SubmissionKind, edit *types.SubmissionEdit) error {
	maxDescription := MaxUploadDescription
	if kind == enum.SubmissionKindReport {
		maxDescription = MaxReportDescription
		if edit.Title != nil || edit.Tags != nil || edit.Category != nil {
			return invalid("reports have no title, tags or category")
		}
		if edit.IncidentType != nil && !edit.IncidentType.IsValid() {
			return invalid("unknown incident type %q", *edit.IncidentType)
		}
	} else {
		if edit.IncidentType != nil {
			return invalid("uploads have no incident type")
		}
		if edit.Title != nil {
			*edit.Title = strings.TrimSpace(*edit.Title)
			if err := validateTitle(*edit.Title); err != nil {
				return err
			}
		}
		if edit.Category != nil && !edit.Category.IsValid() {
			return invalid("unknown category %q", *edit.Category)
		}
		if edit.Tags != nil {
			tags, err := normalizeTags(edit.Tags)
			if err != nil {
				return err
			}
			edit.Tags = tags
		}
	}

	if edit.Description != nil {
		*edit.Description = utils.CompressWhitespacePreserveNewlines(*edit.Description)
		if err := validateDescription(*edit.Description, maxDescription); err != nil {
			return err
		}
	}
	if edit.ImageURL != nil {
		*edit.ImageURL = strings.TrimSpace(*edit.ImageURL)
		if err := validateImageURL(*edit.ImageURL); err != nil {
			return err
		}
	}
	if edit.Latitude != nil || edit.Longitude != nil {
		if edit.Latitude == nil || edit.Longitude == nil {
			return invalid("latitude and longitude must be changed together")
		}
		return validateCoordinates(edit.Latitude, edit.Longitude, true)
	}

	return nil
}

// ValidateFlag checks a community flag.
func ValidateFlag(reason enum.FlagReason, notes string) error {
	if !reason.IsValid() {
		return invalid("unknown flag reason %q", reason)
	}
	if utils.RuneLen(notes) > MaxFlagNotesLength {
		return invalid("notes must be at most %d characters", MaxFlagNotesLength)
	}
	return nil
}

// ValidateReview checks an administrator's notes and optional points override.
func ValidateReview(notes string, points *int) error {
	if utils.RuneLen(notes) > MaxNotesLength {
		return invalid("notes must be at most %d characters", MaxNotesLength)
	}
	if points != nil && (*points < 0 || *points > scoring.MaxPoints) {
		return invalid("points must be between 0 and %d", scoring.MaxPoints)
	}
	return nil
}

// ValidateBanReason checks the reason given for a ban.
func ValidateBanReason(reason string) error {
	n := utils.RuneLen(reason)
	if n < MinBanReasonLength || n > MaxBanReasonLength {
		return invalid("ban reason must be %d-%d characters", MinBanReasonLength, MaxBanReasonLength)
	}
	return nil
}

func validateTitle(title string) error {
	n := utils.RuneLen(title)
	if n < MinTitleLength || n > MaxTitleLength {
		return invalid("title must be %d-%d characters", MinTitleLength, MaxTitleLength)
	}
	return nil
}

func validateDescription(description string, maxLength int) error {
	n := utils.RuneLen(description)
	if n < MinDescriptionLength || n > maxLength {
		return invalid("description must be %d-%d characters", MinDescriptionLength, maxLength)
	}
	return nil
}

func validateImageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("image URL must be an absolute http or https URL")
	}
	return nil
}

func validateCoordinates(lat, lng *float64, required bool) error {
	if lat == nil || lng == nil {
		if required || lat != nil || lng != nil {
			return invalid("latitude and longitude are both required")
		}
		return nil
	}

	if math.IsNaN(*lat) || *lat < -90 || *lat > 90 {
		return invalid("latitude must be between -90 and 90")
	}
	if math.IsNaN(*lng) || *lng < -180 || *lng > 180 {
		return invalid("longitude must be between -180 and 180")
	}
	return nil
}

func normalizeTags(tags []string) ([]string, error) {
	if len(tags) > MaxTags {
		return nil, invalid("at most %d tags are allowed", MaxTags)
	}

	result := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if utils.RuneLen(tag) > MaxTagLength {
			return nil, invalid("tags must be at most %d characters", MaxTagLength)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}

	return result, nil
}
