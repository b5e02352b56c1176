package plan

import (
	"fmt"

	"github.com/vk/shotmatrix/internal/ports"
)

// MatrixRecord is the read-only projection of one job, suitable for
// rendering into CI matrix formats. Records carry everything a CI system
// needs to address the job, and nothing it could use to mutate the plan.
type MatrixRecord struct {
	ID          string           `json:"id"`
	Platform    string           `json:"platform"`
	Device      string           `json:"device"`
	Folder      string           `json:"folder"`
	Language    string           `json:"language"`
	Ports       ports.Allocation `json:"ports"`
	OutputDir   string           `json:"output_dir"`
	Screenshots int              `json:"screenshots"`
}

// GroupKey selects how a grouped matrix export is keyed.
type GroupKey string

const (
	GroupByPlatform GroupKey = "platform"
	GroupByDevice   GroupKey = "device"
	GroupByLanguage GroupKey = "language"
)

// Matrix returns the flat per-job records in plan order.
func (p *Plan) Matrix() []MatrixRecord {
	records := make([]MatrixRecord, 0, len(p.Jobs))
	for _, j := range p.Jobs {
		records = append(records, MatrixRecord{
			ID:          j.ID(),
			Platform:    string(j.Platform),
			Device:      j.Device().Name,
			Folder:      j.Device().Folder,
			Language:    j.Language.Code,
			Ports:       j.Ports,
			OutputDir:   j.OutputDir,
			Screenshots: len(j.Screenshots),
		})
	}
	return records
}

// MatrixBy returns the records grouped under the chosen key. Group order
// within each bucket follows plan order.
func (p *Plan) MatrixBy(key GroupKey) (map[string][]MatrixRecord, error) {
	keyFn := func(r MatrixRecord) string { return r.Platform }
	switch key {
	case GroupByPlatform:
	case GroupByDevice:
		keyFn = func(r MatrixRecord) string { return r.Folder }
	case GroupByLanguage:
		keyFn = func(r MatrixRecord) string { return r.Language }
	default:
		return nil, fmt.Errorf("unknown matrix group key %q", key)
	}

	grouped := make(map[string][]MatrixRecord)
	for _, r := range p.Matrix() {
		k := keyFn(r)
		grouped[k] = append(grouped[k], r)
	}
	return grouped, nil
}
