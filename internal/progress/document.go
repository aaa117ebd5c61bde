package progress

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Document maps main-step ids to their progress records. It is persisted as a
// single JSON column on the owning application.
type Document map[string]MainStep

// MainStep is the progress record of a top-level step.
type MainStep struct {
	Completed   bool               `json:"completed"`
	UpdatedAt   *time.Time         `json:"updated_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Sub         map[string]SubStep `json:"sub"`
}

// SubStep is the progress record of a nested step, keyed by its full id.
type SubStep struct {
	Completed   bool           `json:"completed"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RecordIDs   []string       `json:"record_ids"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON fills a missing "sub" map so decoded records match fresh ones.
func (m *MainStep) UnmarshalJSON(data []byte) error {
	type alias MainStep
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Sub == nil {
		a.Sub = map[string]SubStep{}
	}
	*m = MainStep(a)
	return nil
}

// UnmarshalJSON normalises record_ids into a sorted set.
func (s *SubStep) UnmarshalJSON(data []byte) error {
	type alias SubStep
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.RecordIDs = mergeRecordIDs(a.RecordIDs, nil)
	*s = SubStep(a)
	return nil
}

// ParseDocument decodes a persisted document. Empty input and JSON null both
// yield an empty document.
func ParseDocument(data []byte) (Document, error) {
	doc := Document{}
	if len(data) == 0 || string(data) == "null" {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode step progress: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for id, main := range d {
		out[id] = main.clone()
	}
	return out
}

// MainStepIDs returns the main-step ids present in the document, sorted.
func (d Document) MainStepIDs() []string {
	return slices.Sorted(maps.Keys(d))
}

func (m MainStep) clone() MainStep {
	out := m
	out.UpdatedAt = cloneTime(m.UpdatedAt)
	out.CompletedAt = cloneTime(m.CompletedAt)
	out.Metadata = cloneMetadata(m.Metadata)
	out.Sub = make(map[string]SubStep, len(m.Sub))
	for id, sub := range m.Sub {
		out.Sub[id] = sub.clone()
	}
	return out
}

func (s SubStep) clone() SubStep {
	out := s
	out.CompletedAt = cloneTime(s.CompletedAt)
	out.RecordIDs = append([]string{}, s.RecordIDs...)
	out.Metadata = cloneMetadata(s.Metadata)
	return out
}

// allSubStepsCompleted is false for a main step without sub-steps.
func (m MainStep) allSubStepsCompleted() bool {
	if len(m.Sub) == 0 {
		return false
	}
	for _, sub := range m.Sub {
		if !sub.Completed {
			return false
		}
	}
	return true
}

// subStepsCompleted reports whether every listed sub-step has a completed
// record. Missing records are incomplete.
func (m MainStep) subStepsCompleted(ids []string) bool {
	for _, id := range ids {
		if !m.Sub[id].Completed {
			return false
		}
	}
	return true
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMetadata(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// mergeRecordIDs returns the sorted union of both lists without empty ids.
// The result is never nil so it serialises as [].
func mergeRecordIDs(existing, added []string) []string {
	set := make(map[string]struct{}, len(existing)+len(added))
	for _, id := range existing {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	for _, id := range added {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
