package templates

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

type key struct {
	kind     Kind
	category types.Category
}

// Registry indexes templates by kind and category. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	templates []*Template
	byKey     map[key]*Template
}

// NewRegistry loads the embedded templates. Every kind must be present for
// every category.
func NewRegistry(log logrus.FieldLogger) (*Registry, error) {
	loaded, err := Load()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	reg, err := newRegistry(loaded)
	if err != nil {
		return nil, err
	}

	log.WithField("component", "template_registry").
		WithField("template_count", len(loaded)).
		Info("Template registry loaded")

	return reg, nil
}

func newRegistry(loaded []*Template) (*Registry, error) {
	byKey := make(map[key]*Template, len(loaded))

	for _, tpl := range loaded {
		k := key{kind: tpl.Kind, category: tpl.Category}
		if prev, ok := byKey[k]; ok {
			return nil, fmt.Errorf("templates %s and %s both define %s/%s", prev.FilePath, tpl.FilePath, tpl.Kind, tpl.Category)
		}

		byKey[k] = tpl
	}

	for _, kind := range []Kind{KindStub, KindFallback, KindEmergency} {
		for _, category := range []types.Category{types.CategoryIncident, types.CategoryOnboarding} {
			if _, ok := byKey[key{kind: kind, category: category}]; !ok {
				return nil, fmt.Errorf("missing %s template for %s", kind, category)
			}
		}
	}

	return &Registry{templates: loaded, byKey: byKey}, nil
}

// Get returns the template for kind and category. Unknown categories get
// the incident template.
func (r *Registry) Get(kind Kind, category types.Category) *Template {
	if tpl, ok := r.byKey[key{kind: kind, category: category}]; ok {
		return tpl
	}

	return r.byKey[key{kind: kind, category: types.CategoryIncident}]
}

// All returns all loaded templates.
func (r *Registry) All() []*Template {
	out := make([]*Template, len(r.templates))
	copy(out, r.templates)

	return out
}

// Count returns the number of loaded templates.
func (r *Registry) Count() int {
	return len(r.templates)
}
