package models

import (
	"encoding/json"
	"fmt"
)

// CMSCredentials is the body posted to /api/token/.
type CMSCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Gender as reported by the CMS.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Year is the student's grade.
type Year string

const (
	YearG1 Year = "G1"
	YearG2 Year = "G2"
	YearA1 Year = "A1"
	YearA2 Year = "A2"
)

// House is the student's boarding house.
type House string

const (
	HouseWood  House = "Wood"
	HouseWater House = "Water"
	HouseMetal House = "Metal"
	HouseFire  House = "Fire"
)

// UnmarshalJSON rejects unknown genders.
func (g *Gender) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, "gender", g, GenderMale, GenderFemale)
}

// UnmarshalJSON rejects unknown grades.
func (y *Year) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, "grade", y, YearG1, YearG2, YearA1, YearA2)
}

// UnmarshalJSON rejects unknown houses.
func (h *House) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, "house", h, HouseWood, HouseWater, HouseMetal, HouseFire)
}

func decodeEnum[T ~string](data []byte, field string, dest *T, allowed ...T) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, value := range allowed {
		if T(raw) == value {
			*dest = value
			return nil
		}
	}
	return fmt.Errorf("%s: invalid value %q", field, raw)
}

// CMSUserInformation is the document returned by /api/legacy/students/my.
type CMSUserInformation struct {
	HasMoreInfo bool            `json:"has_more_info"`
	GeneralInfo CMSGeneralInfo  `json:"general_info"`
	BasicInfo   CMSBasicInfo    `json:"basic_info"`
	MoreInfo    json.RawMessage `json:"more_info"`
	Relatives   json.RawMessage `json:"relatives"`
}

// CMSGeneralInfo carries identity fields.
type CMSGeneralInfo struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	EnglishName string `json:"en_name"`
	Pinyin      string `json:"pingyin"`
	FormGroup   string `json:"form_group"`
	Photo       string `json:"photo"`
}

// CMSBasicInfo carries boarding and contact fields. Enrollment is YYYY.MM.
type CMSBasicInfo struct {
	Gender        Gender `json:"gender"`
	Year          Year   `json:"grade"`
	House         House  `json:"house"`
	Dormitory     string `json:"dormitory"`
	DormitoryKind string `json:"dormitory_kind"`
	Enrollment    string `json:"enrollment"`
	MobileNumber  string `json:"mobile"`
	SchoolEmail   string `json:"school_email"`
	StudentEmail  string `json:"student_email"`
}

// CMSAssembly is one entry of /api/legacy/students/my/assembly. Date is YYYY-MM-DD.
type CMSAssembly struct {
	Title    string `json:"title"`
	Location string `json:"location"`
	Date     string `json:"date"`
	Classes  string `json:"classes"`
}
