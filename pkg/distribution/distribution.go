// Package distribution reports how images are spread across the classes of
// a dataset and renders the spread as charts.
package distribution

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/leaf-analyzer/pkg/catalog"
)

// ClassCount is the number of images of one class
type ClassCount struct {
	Name  string
	Count int
	Share float64
}

// Report holds per-class counts and summary statistics
type Report struct {
	Name    string
	Classes []ClassCount
	Total   int
	Mean    float64
	StdDev  float64
	// Imbalance is the largest class size divided by the smallest one.
	Imbalance float64
}

// Labels returns the class names in report order
func (r *Report) Labels() []string {
	labels := make([]string, len(r.Classes))
	for i, c := range r.Classes {
		labels[i] = c.Name
	}
	return labels
}

// Values returns the class sizes in report order
func (r *Report) Values() []float64 {
	values := make([]float64, len(r.Classes))
	for i, c := range r.Classes {
		values[i] = float64(c.Count)
	}
	return values
}

// Analyze scans dir and computes its class distribution
func Analyze(dir string) (*Report, error) {
	groups, err := catalog.Scan(dir, true)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no class folders found in %s", dir)
	}
	return FromGroups(filepath.Base(filepath.Clean(dir)), groups), nil
}

// FromGroups computes the distribution of already grouped files
func FromGroups(name string, groups catalog.Groups) *Report {
	report := &Report{Name: name}
	for _, g := range groups {
		report.Classes = append(report.Classes, ClassCount{Name: g.Name, Count: len(g.Files)})
		report.Total += len(g.Files)
	}
	if len(report.Classes) == 0 {
		return report
	}

	values := report.Values()
	for i := range report.Classes {
		report.Classes[i].Share = values[i] / float64(report.Total)
	}

	if len(values) > 1 {
		report.Mean, report.StdDev = stat.MeanStdDev(values, nil)
	} else {
		report.Mean = values[0]
	}
	if low := floats.Min(values); low > 0 {
		report.Imbalance = floats.Max(values) / low
	}
	return report
}
