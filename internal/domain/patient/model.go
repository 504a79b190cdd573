package patient

import "time"

// Patient maps to the patients table. The ID is an external identifier
// supplied by the lab system ("P-1042", an MRN, or similar), not a generated
// surrogate, so imports can reference patients stably across files.
type Patient struct {
	ID          string     `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *string    `db:"gender" json:"gender,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Age returns the patient's age in whole years at the given time, or nil
// when no date of birth is recorded.
func (p *Patient) Age(at time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	years := at.Year() - dob.Year()
	// Not yet had this year's birthday.
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return &years
}

// Demographics is the snapshot range resolution works from. The Has flags
// distinguish "unknown" from zero values.
type Demographics struct {
	PatientID string  `json:"patient_id"`
	Age       *int    `json:"age,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	HasAge    bool    `json:"has_age"`
	HasGender bool    `json:"has_gender"`
}

// DemographicsAt captures the patient's resolution inputs as of a moment.
func (p *Patient) DemographicsAt(at time.Time) Demographics {
	d := Demographics{PatientID: p.ID}
	if age := p.Age(at); age != nil {
		d.Age = age
		d.HasAge = true
	}
	if p.Gender != nil && *p.Gender != "" {
		d.Gender = p.Gender
		d.HasGender = true
	}
	return d
}
