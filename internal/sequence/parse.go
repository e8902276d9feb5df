package sequence

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/jaakkos/swarmwork/internal/domain"
)

// ParseSequenceDoc parses a sequence input document (YAML or JSON — YAML is a
// superset) and normalizes it: steps are sorted by step number, and missing
// step numbers are assigned from position.
func ParseSequenceDoc(data []byte) (domain.Sequence, error) {
	var seq domain.Sequence
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return seq, fmt.Errorf("parse sequence document: %w", err)
	}
	if seq.ID == "" {
		return seq, fmt.Errorf("sequence document has no sequence_id")
	}
	if len(seq.Steps) == 0 {
		return seq, fmt.Errorf("sequence %s has no steps", seq.ID)
	}
	for i := range seq.Steps {
		if seq.Steps[i].StepNumber == 0 {
			seq.Steps[i].StepNumber = i + 1
		}
		if seq.Steps[i].Channel == "" {
			return seq, fmt.Errorf("sequence %s: step %d has no channel", seq.ID, seq.Steps[i].StepNumber)
		}
	}
	sort.SliceStable(seq.Steps, func(i, j int) bool {
		return seq.Steps[i].StepNumber < seq.Steps[j].StepNumber
	})
	return seq, nil
}
