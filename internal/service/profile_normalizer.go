package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/cms-timetable/internal/models"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

const assemblyDateLayout = "2006-01-02"

// NormalizeProfile flattens CMS user information into a StudentProfile.
// Enrollment must be formatted YYYY.MM.
func NormalizeProfile(info models.CMSUserInformation) (models.StudentProfile, error) {
	year, month, err := parseEnrollment(info.BasicInfo.Enrollment)
	if err != nil {
		return models.StudentProfile{}, appErrors.WrapAs(err, appErrors.ErrCMSPayload, "invalid enrollment in student profile")
	}
	general, basic := info.GeneralInfo, info.BasicInfo
	return models.StudentProfile{
		ID:              general.ID,
		Name:            general.Name,
		EnglishName:     general.EnglishName,
		Pinyin:          general.Pinyin,
		FormGroup:       general.FormGroup,
		PhotoURL:        general.Photo,
		Gender:          basic.Gender,
		Year:            basic.Year,
		House:           basic.House,
		Dormitory:       basic.Dormitory,
		DormitoryKind:   basic.DormitoryKind,
		EnrollmentYear:  year,
		EnrollmentMonth: month,
		MobileNumber:    basic.MobileNumber,
		SchoolEmail:     basic.SchoolEmail,
		StudentEmail:    basic.StudentEmail,
		HasMoreInfo:     info.HasMoreInfo,
	}, nil
}

func parseEnrollment(raw string) (int, time.Month, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("enrollment %q is not YYYY.MM", raw)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return 0, 0, fmt.Errorf("enrollment %q has an invalid year", raw)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("enrollment %q has an invalid month", raw)
	}
	return year, time.Month(month), nil
}

// NormalizeAssemblies parses assembly dates in loc, keeping CMS order.
func NormalizeAssemblies(raw []models.CMSAssembly, loc *time.Location) ([]models.Assembly, error) {
	if loc == nil {
		loc = time.UTC
	}
	assemblies := make([]models.Assembly, 0, len(raw))
	for i, item := range raw {
		date, err := time.ParseInLocation(assemblyDateLayout, strings.TrimSpace(item.Date), loc)
		if err != nil {
			return nil, appErrors.WrapAs(fmt.Errorf("assembly %d: %w", i, err), appErrors.ErrCMSPayload, "invalid assembly date")
		}
		assemblies = append(assemblies, models.Assembly{
			Title:    item.Title,
			Location: item.Location,
			Date:     date,
			Classes:  item.Classes,
		})
	}
	return assemblies, nil
}
