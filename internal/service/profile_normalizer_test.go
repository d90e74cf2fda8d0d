package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cms-timetable/internal/models"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

func sampleUserInformation() models.CMSUserInformation {
	return models.CMSUserInformation{
		HasMoreInfo: true,
		GeneralInfo: models.CMSGeneralInfo{ID: 42, Name: "Zhang Wei", EnglishName: "David", Pinyin: "zhangwei", FormGroup: "A1-3"},
		BasicInfo: models.CMSBasicInfo{
			Gender:     models.GenderMale,
			Year:       models.YearA1,
			House:      models.HouseWater,
			Dormitory:  "B204",
			Enrollment: "2022.09",
		},
	}
}

func TestNormalizeProfile(t *testing.T) {
	profile, err := NormalizeProfile(sampleUserInformation())
	require.NoError(t, err)

	assert.Equal(t, uint(42), profile.ID)
	assert.Equal(t, "David", profile.EnglishName)
	assert.Equal(t, 2022, profile.EnrollmentYear)
	assert.Equal(t, time.September, profile.EnrollmentMonth)
	assert.Equal(t, models.HouseWater, profile.House)
	assert.True(t, profile.HasMoreInfo)
}

func TestNormalizeProfileRejectsBadEnrollment(t *testing.T) {
	for _, raw := range []string{"", "2022", "22.09", "2022.13", "2022.x"} {
		info := sampleUserInformation()
		info.BasicInfo.Enrollment = raw

		_, err := NormalizeProfile(info)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, appErrors.ErrCMSPayload))
	}
}

func TestNormalizeAssemblies(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	assemblies, err := NormalizeAssemblies([]models.CMSAssembly{
		{Title: "Opening", Location: "Hall", Date: "2024-09-02", Classes: "All"},
		{Title: "House meeting", Location: "Gym", Date: "2024-09-09", Classes: "A1"},
	}, loc)
	require.NoError(t, err)
	require.Len(t, assemblies, 2)
	assert.Equal(t, time.Date(2024, time.September, 2, 0, 0, 0, 0, loc), assemblies[0].Date)
	assert.Equal(t, "House meeting", assemblies[1].Title)

	_, err = NormalizeAssemblies([]models.CMSAssembly{{Date: "02/09/2024"}}, loc)
	assert.True(t, errors.Is(err, appErrors.ErrCMSPayload))
}
