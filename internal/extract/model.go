package extract

import (
	"errors"
	"fmt"
	"os"

	"github.com/jdkato/prose/v2"
)

// ErrModelUnavailable is returned when the NER model cannot be loaded
var ErrModelUnavailable = errors.New("ner model unavailable")

// Token is one token of the model's tokenisation
type Token struct {
	Text string
	Tag  string // Part-of-speech tag, empty when the model does not tag
}

// RawEntity is an entity exactly as the model reports it.
// Labels are model-specific strings; the Recognizer maps them to a closed set.
type RawEntity struct {
	Text  string
	Label string
}

// Annotation is the model output for one text
type Annotation struct {
	Tokens   []Token
	Entities []RawEntity
}

// Model is a pretrained named-entity tagger
type Model interface {
	Name() string
	Annotate(text string) (*Annotation, error)
}

// ProseModel runs the prose averaged-perceptron tagger and entity extracter
type ProseModel struct {
	model *prose.Model
	name  string
}

const warmupText = "Councillor Jane Doe visited Leeds."

// LoadProseModel loads the prose NER model. An empty dir selects the model
// bundled with the library; otherwise the directory must hold a model
// previously written with prose's Model.Write.
func LoadProseModel(dir string) (m *ProseModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("%w: %v", ErrModelUnavailable, r)
		}
	}()

	m = &ProseModel{name: "prose/default"}
	if dir != "" {
		info, statErr := os.Stat(dir)
		if statErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, statErr)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", ErrModelUnavailable, dir)
		}
		m.model = prose.ModelFromDisk(dir)
		m.name = "prose/" + m.model.Name
	}

	// Warm up so a broken model fails here rather than on the first post.
	// Without a dir the warm-up document builds the bundled model, which is
	// kept so later calls never rebuild it.
	if m.model == nil {
		doc, docErr := prose.NewDocument(warmupText, prose.WithSegmentation(false))
		if docErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, docErr)
		}
		if doc.Model == nil {
			return nil, fmt.Errorf("%w: bundled model missing", ErrModelUnavailable)
		}
		m.model = doc.Model
		return m, nil
	}
	if _, err := m.Annotate(warmupText); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return m, nil
}

// Name identifies the model
func (m *ProseModel) Name() string {
	return m.name
}

// Annotate tokenises, tags and extracts entities from text
func (m *ProseModel) Annotate(text string) (*Annotation, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false), prose.UsingModel(m.model))
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}

	out := &Annotation{}
	for _, tok := range doc.Tokens() {
		out.Tokens = append(out.Tokens, Token{Text: tok.Text, Tag: tok.Tag})
	}
	for _, ent := range doc.Entities() {
		out.Entities = append(out.Entities, RawEntity{Text: ent.Text, Label: ent.Label})
	}
	return out, nil
}
