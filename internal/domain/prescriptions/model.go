package prescriptions

import "time"

// Gender del snapshot demográfico del paciente.
// @Enum male, female, other
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Timing define cuándo se toma un medicamento respecto a las comidas.
type Timing string

const (
	TimingBeforeMeals Timing = "before_meals"
	TimingAfterMeals  Timing = "after_meals"
	TimingWithMeals   Timing = "with_meals"
)

// PatientInfo es el snapshot demográfico congelado al emitir la receta.
// No referencia una cuenta: el paciente puede no existir todavía.
type PatientInfo struct {
	Name   string
	Age    string
	Gender Gender
	Mobile string
}

type Medication struct {
	Name     string
	Dosage   string
	Timing   Timing
	Duration string
}

type ClinicalInfo struct {
	Diagnosis    string
	Notes        string
	FollowUpDate string // YYYY-MM-DD opcional
}

type DoctorInfo struct {
	Name          string
	Qualification string
	Registration  string
}

// Prescription es el documento clínico compartible. Inmutable después de
// creado salvo por el grant que se le adjunta; la autoría nunca se
// transfiere aunque un paciente la vincule a su cuenta.
type Prescription struct {
	ID           string
	DoctorUserID string

	Patient     PatientInfo
	Medications []Medication
	Clinical    ClinicalInfo
	Doctor      DoctorInfo

	CreatedAt time.Time
}
