package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// StaticClassifier returns the same category for every input. It stands in
// for real intent detection.
type StaticClassifier struct {
	log      logrus.FieldLogger
	category types.Category
}

var _ Classifier = (*StaticClassifier)(nil)

// NewStaticClassifier creates a classifier that always answers category.
// Unknown categories become INCIDENT.
func NewStaticClassifier(log logrus.FieldLogger, category types.Category) *StaticClassifier {
	if !category.Valid() {
		category = types.CategoryIncident
	}

	return &StaticClassifier{
		log:      log.WithField("component", "classifier"),
		category: category,
	}
}

// Classify implements Classifier.
func (c *StaticClassifier) Classify(_ context.Context, input types.RawInput) types.Category {
	c.log.WithFields(logrus.Fields{
		"category":     c.category,
		"input_length": len(input.Content),
	}).Debug("Classified input")

	return c.category
}
