// Package analysis hosts post-completion analyzers that run over a stored
// activity. Analyzers self-register by name so the composition root only
// needs a blank import to make a skill available.
package analysis

import (
	"context"
	"database/sql"
)

// Analyzer is the interface that all analysis skills must implement
type Analyzer interface {
	// Analyze runs the analysis over one completed activity
	Analyze(ctx context.Context, activityID string) (*Result, error)

	// GetName returns the name of the analyzer
	GetName() string
}

// Result carries an analyzer's output: named numeric values plus an
// optional human-readable note.
type Result struct {
	Name    string             `json:"name"`
	Values  map[string]float64 `json:"values"`
	Message string             `json:"message,omitempty"`
}

// AnalyzerFactory is a function that creates an analyzer instance
type AnalyzerFactory func(db *sql.DB) Analyzer

// AnalyzerRegistry maps skill names to analyzer factories
var AnalyzerRegistry = make(map[string]AnalyzerFactory)

// RegisterAnalyzer registers an analyzer factory for a skill name
func RegisterAnalyzer(skillName string, factory AnalyzerFactory) {
	AnalyzerRegistry[skillName] = factory
}

// GetAnalyzer retrieves an analyzer instance for a skill name
func GetAnalyzer(skillName string, db *sql.DB) Analyzer {
	factory, ok := AnalyzerRegistry[skillName]
	if !ok {
		return nil
	}
	return factory(db)
}

// Names lists the registered skill names
func Names() []string {
	names := make([]string, 0, len(AnalyzerRegistry))
	for name := range AnalyzerRegistry {
		names = append(names, name)
	}
	return names
}
