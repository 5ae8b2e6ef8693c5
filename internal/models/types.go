package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// SectionKind is the BioC section_type infon of a passage.
type SectionKind string

const (
	SectionAbstract   SectionKind = "ABSTRACT"
	SectionIntro      SectionKind = "INTRO"
	SectionResults    SectionKind = "RESULTS"
	SectionDiscussion SectionKind = "DISCUSS"
	SectionConclusion SectionKind = "CONCL"
)

// PassageKind is the BioC type infon of a passage.
type PassageKind string

const (
	PassageAbstract  PassageKind = "abstract"
	PassageParagraph PassageKind = "paragraph"
)

// EntityKind is the object class assigned by the annotation service.
type EntityKind string

const (
	EntityGene    EntityKind = "gene"
	EntityDisease EntityKind = "disease"
)

// Assembly names a reference genome build.
type Assembly string

const (
	AssemblyHG38 Assembly = "hg38"
	AssemblyHG19 Assembly = "hg19"
)

// RunStatus tracks the outcome of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// StringArray stores a slice of strings in SQLite as JSON.
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = StringArray{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("failed to scan StringArray")
	}
}
