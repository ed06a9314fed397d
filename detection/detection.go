// Package detection models the leaf-photo disease detector boundary. The
// vision model itself is an external collaborator; this package aggregates
// its labeled boxes into a report and renders the system context that
// seeds the conversation.
package detection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// HealthyDiagnosis is reported when the detector finds no diseased regions.
const HealthyDiagnosis = "Healthy"

// Box is one labeled region returned by the vision collaborator.
type Box struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// Report is the structured outcome of one detection pass.
type Report struct {
	Diagnosis string         `json:"diagnosis" bson:"diagnosis"`
	Counts    map[string]int `json:"counts" bson:"counts"`
	Boxes     []Box          `json:"boxes" bson:"boxes"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}

// Detector is the vision capability: image bytes in, report out.
type Detector interface {
	Detect(ctx context.Context, image []byte) (*Report, error)
}

// Aggregate reduces labeled boxes to a report. The most frequent label
// becomes the primary diagnosis; with no boxes the plant is reported
// healthy. Ties resolve to the label that appeared first.
func Aggregate(boxes []Box) *Report {
	report := &Report{
		Diagnosis: HealthyDiagnosis,
		Counts:    make(map[string]int),
		Boxes:     boxes,
		CreatedAt: time.Now().UTC(),
	}

	best := 0
	for _, box := range boxes {
		report.Counts[box.Label]++
		if report.Counts[box.Label] > best {
			best = report.Counts[box.Label]
			report.Diagnosis = box.Label
		}
	}
	return report
}

// SystemContext renders the report as the one-time system message that
// seeds the session's conversation.
func (r *Report) SystemContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "A leaf photo was analysed for this conversation. Detected disease: %s.", r.Diagnosis)

	if len(r.Counts) > 0 {
		labels := make([]string, 0, len(r.Counts))
		for label := range r.Counts {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		b.WriteString(" Detected regions:")
		for _, label := range labels {
			fmt.Fprintf(&b, " %s x%d;", label, r.Counts[label])
		}
	}

	b.WriteString(" Use this context when the user asks about their plant.")
	return b.String()
}
