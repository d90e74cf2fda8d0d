package models

import "time"

// StudentProfile is the normalized view of CMS user information.
type StudentProfile struct {
	ID              uint       `json:"id"`
	Name            string     `json:"name"`
	EnglishName     string     `json:"english_name"`
	Pinyin          string     `json:"pinyin"`
	FormGroup       string     `json:"form_group"`
	PhotoURL        string     `json:"photo_url,omitempty"`
	Gender          Gender     `json:"gender"`
	Year            Year       `json:"year"`
	House           House      `json:"house"`
	Dormitory       string     `json:"dormitory"`
	DormitoryKind   string     `json:"dormitory_kind"`
	EnrollmentYear  int        `json:"enrollment_year"`
	EnrollmentMonth time.Month `json:"enrollment_month"`
	MobileNumber    string     `json:"mobile_number,omitempty"`
	SchoolEmail     string     `json:"school_email,omitempty"`
	StudentEmail    string     `json:"student_email,omitempty"`
	HasMoreInfo     bool       `json:"has_more_info"`
}

// Assembly is a scheduled school assembly.
type Assembly struct {
	Title    string    `json:"title"`
	Location string    `json:"location"`
	Date     time.Time `json:"date"`
	Classes  string    `json:"classes"`
}
