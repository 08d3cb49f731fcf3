package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// FileCatalog is a CatalogSource backed by a JSON file of trial
// definitions. It serves standalone deployments that have no Postgres
// catalog; the file is re-read on every load so a SnapshotCache in front
// of it controls the refresh interval.
type FileCatalog struct {
	path string
	log  *logrus.Logger
}

// NewFileCatalog creates a file-backed catalog source.
func NewFileCatalog(path string, logger *logrus.Logger) *FileCatalog {
	return &FileCatalog{path: path, log: logger}
}

// GetCatalog reads every trial in the file. Trials without an ID or with
// inverted age bounds are skipped with a warning; criteria may arrive
// without a type, the matcher classifies those on first use.
func (f *FileCatalog) GetCatalog(_ context.Context) ([]domain.TrialDefinition, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var trials []domain.TrialDefinition
	if err := json.Unmarshal(data, &trials); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	valid := make([]domain.TrialDefinition, 0, len(trials))
	for i := range trials {
		t := &trials[i]
		if t.ID == "" {
			f.log.Warn("Skipping trial without ID in catalog file")
			continue
		}
		if t.MinAge != nil && t.MaxAge != nil && *t.MinAge > *t.MaxAge {
			f.log.WithField("trial_id", t.ID).Warn("Skipping trial with inverted age bounds")
			continue
		}
		// Polarity follows the array the criterion sits in; files rarely
		// spell it out per criterion.
		for j := range t.InclusionCriteria {
			if t.InclusionCriteria[j].Polarity == "" {
				t.InclusionCriteria[j].Polarity = domain.Inclusion
			}
		}
		for j := range t.ExclusionCriteria {
			if t.ExclusionCriteria[j].Polarity == "" {
				t.ExclusionCriteria[j].Polarity = domain.Exclusion
			}
		}
		valid = append(valid, *t)
	}

	f.log.WithFields(logrus.Fields{
		"path":   f.path,
		"trials": len(valid),
	}).Info("Trial catalog loaded from file")

	return valid, nil
}
