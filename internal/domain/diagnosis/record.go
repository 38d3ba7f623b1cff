package diagnosis

// Medicine describes one recommended medicine in a diagnosis record.
type Medicine struct {
	Name           string            `json:"name"`
	Purpose        string            `json:"purpose"`
	HowItWorks     string            `json:"how_it_works"`
	Dosage         map[string]string `json:"dosage"`
	Pros           []string          `json:"pros"`
	Cons           []string          `json:"cons"`
	WhenNotToTake  []string          `json:"when_not_to_take"`
	AgeRestriction string            `json:"age_restriction,omitempty"`
}

// Record is the structured final output of a diagnosis session.
type Record struct {
	DiseaseName      string     `json:"diseaseName"`
	DiseaseSummary   string     `json:"diseaseSummary"`
	WhyYouHaveThis   string     `json:"whyYouHaveThis"`
	WhatToDoFirst    string     `json:"whatToDoFirst"`
	DangerSigns      []string   `json:"dangerSigns"`
	LifestyleChanges []string   `json:"lifestyleChanges"`
	Medicines        []Medicine `json:"medicines"`
}

// Chunk is a partial record delivered over the streaming channel. Fields the
// server has not produced yet are absent; pointer and nil-slice semantics
// distinguish "not in this chunk" from "empty".
type Chunk struct {
	DiseaseName      *string    `json:"diseaseName,omitempty"`
	DiseaseSummary   *string    `json:"diseaseSummary,omitempty"`
	WhyYouHaveThis   *string    `json:"whyYouHaveThis,omitempty"`
	WhatToDoFirst    *string    `json:"whatToDoFirst,omitempty"`
	DangerSigns      []string   `json:"dangerSigns,omitempty"`
	LifestyleChanges []string   `json:"lifestyleChanges,omitempty"`
	Medicines        []Medicine `json:"medicines,omitempty"`
}

// Merge applies a chunk to the record, overwriting only the fields the chunk
// carries. Previously received fields survive chunks that omit them.
func (r *Record) Merge(c Chunk) {
	if c.DiseaseName != nil {
		r.DiseaseName = *c.DiseaseName
	}
	if c.DiseaseSummary != nil {
		r.DiseaseSummary = *c.DiseaseSummary
	}
	if c.WhyYouHaveThis != nil {
		r.WhyYouHaveThis = *c.WhyYouHaveThis
	}
	if c.WhatToDoFirst != nil {
		r.WhatToDoFirst = *c.WhatToDoFirst
	}
	if c.DangerSigns != nil {
		r.DangerSigns = c.DangerSigns
	}
	if c.LifestyleChanges != nil {
		r.LifestyleChanges = c.LifestyleChanges
	}
	if c.Medicines != nil {
		r.Medicines = c.Medicines
	}
}
