package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vitalvas/autodoc/synth"
)

type profileRequest struct {
	Name     string            `json:"name" validate:"required,max=64"`
	Email    string            `json:"email,omitempty" validate:"required,email"`
	Age      *int              `json:"age" validate:"omitempty,min=0"`
	Score    float64           `json:"score"`
	Active   bool              `json:"active"`
	Born     time.Time         `json:"born"`
	Tags     []string          `json:"tags" validate:"dive,required"`
	Labels   map[string]string `json:"labels"`
	Nickname *string           `json:"nickname"`
	Secret   string            `json:"-"`
	Plain    int
	internal string
}

func (profileRequest) Annotations() synth.Bag {
	return synth.Bag{"summary": "Update the profile", "name": "Profile owner name"}
}

type documentedRequest struct {
	Title string `json:"title" doc:"Post title"`
}

func TestRulesOf(t *testing.T) {
	rules := RulesOf[profileRequest]()

	assert.Equal(t, map[string]string{
		"name":     "required|max:64|string",
		"email":    "required|email|string",
		"age":      "nullable|min:0|integer",
		"score":    "numeric",
		"active":   "boolean",
		"born":     "date",
		"tags":     "dive|required|array",
		"labels":   "array",
		"nickname": "nullable|string",
		"Plain":    "integer",
	}, rules)

	assert.Equal(t, "integer", synth.InferType(synth.SplitRules(rules["age"])))
	assert.Equal(t, "double", synth.InferType(synth.SplitRules(rules["score"])))
	assert.Equal(t, "date", synth.InferType(synth.SplitRules(rules["born"])))
}

func TestRulesOfPointerAndNonStruct(t *testing.T) {
	assert.Equal(t, map[string]string{"title": "string"}, RulesOf[*documentedRequest]())
	assert.Nil(t, RulesOf[string]())
}

func TestAnnotationsOf(t *testing.T) {
	t.Run("annotated type and doc tags", func(t *testing.T) {
		bag := AnnotationsOf[profileRequest]()
		assert.Equal(t, synth.Bag{"summary": "Update the profile", "name": "Profile owner name"}, bag)
	})

	t.Run("doc tags", func(t *testing.T) {
		assert.Equal(t, synth.Bag{"title": "Post title"}, AnnotationsOf[*documentedRequest]())
	})

	t.Run("non struct", func(t *testing.T) {
		assert.Empty(t, AnnotationsOf[int]())
	})
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "profileRequest", TypeName[profileRequest]())
	assert.Equal(t, "documentedRequest", TypeName[*documentedRequest]())
	assert.Equal(t, "string", TypeName[string]())
}

func TestRegister(t *testing.T) {
	cat := synth.NewCatalog()
	Register[documentedRequest](cat)

	assert.Equal(t, map[string]string{"title": "string"}, cat.Rules("documentedRequest"))
	assert.Equal(t, synth.Bag{"title": "Post title"}, cat.Annotations("documentedRequest"))
}
