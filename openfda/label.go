// Package openfda fetches drug label records from the openFDA label endpoint.
package openfda

import "encoding/json"

// Label is one openFDA drug label record. The common sections are decoded
// into typed fields; Raw keeps the record exactly as openFDA returned it and
// is what MarshalJSON emits, so no section is lost on the way to the model.
type Label struct {
	ID            string   `json:"id"`
	SetID         string   `json:"set_id,omitempty"`
	EffectiveTime string   `json:"effective_time,omitempty"`
	Version       string   `json:"version,omitempty"`
	OpenFDA       Metadata `json:"openfda,omitempty"`

	BoxedWarning             []string `json:"boxed_warning,omitempty"`
	Contraindications        []string `json:"contraindications,omitempty"`
	Warnings                 []string `json:"warnings,omitempty"`
	WarningsAndCautions      []string `json:"warnings_and_cautions,omitempty"`
	Precautions              []string `json:"precautions,omitempty"`
	GeneralPrecautions       []string `json:"general_precautions,omitempty"`
	DrugInteractions         []string `json:"drug_interactions,omitempty"`
	AdverseReactions         []string `json:"adverse_reactions,omitempty"`
	Pregnancy                []string `json:"pregnancy,omitempty"`
	PregnancyOrBreastFeeding []string `json:"pregnancy_or_breast_feeding,omitempty"`
	NursingMothers           []string `json:"nursing_mothers,omitempty"`
	PediatricUse             []string `json:"pediatric_use,omitempty"`
	GeriatricUse             []string `json:"geriatric_use,omitempty"`
	DoNotUse                 []string `json:"do_not_use,omitempty"`
	AskDoctor                []string `json:"ask_doctor,omitempty"`
	AskDoctorOrPharmacist    []string `json:"ask_doctor_or_pharmacist,omitempty"`
	StopUse                  []string `json:"stop_use,omitempty"`
	IndicationsAndUsage      []string `json:"indications_and_usage,omitempty"`
	ActiveIngredient         []string `json:"active_ingredient,omitempty"`
	Purpose                  []string `json:"purpose,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed sections and keeps the full record in Raw
func (l *Label) UnmarshalJSON(data []byte) error {
	type plain Label
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Label(p)
	l.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits Raw when the label was decoded from openFDA, otherwise
// the typed fields with empty sections dropped
func (l Label) MarshalJSON() ([]byte, error) {
	if len(l.Raw) > 0 {
		return l.Raw, nil
	}
	type plain Label
	return json.Marshal(plain(l))
}

// Metadata is the harmonized "openfda" block of a label
type Metadata struct {
	GenericName      []string `json:"generic_name,omitempty"`
	BrandName        []string `json:"brand_name,omitempty"`
	ManufacturerName []string `json:"manufacturer_name,omitempty"`
	Route            []string `json:"route,omitempty"`
	SubstanceName    []string `json:"substance_name,omitempty"`
	PharmClassEPC    []string `json:"pharm_class_epc,omitempty"`
	ProductType      []string `json:"product_type,omitempty"`
}

// PlaceholderLabel is the empty record used when no label could be fetched
func PlaceholderLabel() Label {
	return Label{}
}

// IsPlaceholder reports whether l carries no label data
func (l Label) IsPlaceholder() bool {
	return len(l.Raw) == 0 && l.ID == "" && l.SetID == "" && !l.hasSections()
}

func (l Label) hasSections() bool {
	for _, s := range [][]string{
		l.BoxedWarning, l.Contraindications, l.Warnings, l.WarningsAndCautions,
		l.Precautions, l.GeneralPrecautions, l.DrugInteractions, l.AdverseReactions,
		l.Pregnancy, l.PregnancyOrBreastFeeding, l.NursingMothers, l.PediatricUse,
		l.GeriatricUse, l.DoNotUse, l.AskDoctor, l.AskDoctorOrPharmacist, l.StopUse,
		l.IndicationsAndUsage, l.ActiveIngredient, l.Purpose,
	} {
		if len(s) > 0 {
			return true
		}
	}
	return false
}

type labelResponse struct {
	Meta struct {
		LastUpdated string `json:"last_updated"`
		Results     struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []Label `json:"results"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
