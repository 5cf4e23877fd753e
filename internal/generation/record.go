// Package generation defines the boundary to the external text-generation
// service: prompt in, structured FAQ records out, with typed failure
// classification for the orchestration layer to act on.
package generation

// Difficulty tiers accepted for a generated record.
const (
	DifficultyBasic        = "basic"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Difficulties lists the declared difficulty tiers.
var Difficulties = []string{DifficultyBasic, DifficultyIntermediate, DifficultyAdvanced}

// Customer segments used to tag generated records.
const (
	SegmentRetail           = "retail"
	SegmentBusiness         = "business"
	SegmentWealthManagement = "wealth_management"
)

// Segments lists the declared segment tags.
var Segments = []string{SegmentRetail, SegmentBusiness, SegmentWealthManagement}

// Record is one generated FAQ. It is owned by the pipeline run that created
// it until handed to the validator.
type Record struct {
	ID          string   `json:"id,omitempty"`
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Keywords    []string `json:"keywords"`
	Difficulty  string   `json:"difficulty"`
	Segment     string   `json:"segment"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
}
