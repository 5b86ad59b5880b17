package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/civicner/internal/model"
)

func TestRecognizeEmptyInput(t *testing.T) {
	m := &stubModel{entities: map[string]string{"Leeds": "GPE"}}
	r := NewRecognizer(m, 3, nil)

	require.Empty(t, r.Recognize(""))
	require.Empty(t, r.Recognize("   \n\t"))
	require.Zero(t, m.calls, "model should not run on blank input")
}

func TestRecognizeMapsLabelsAndOffsets(t *testing.T) {
	text := "John Smith of Reform UK visited Leeds in 2024, UK."
	m := &stubModel{entities: map[string]string{
		"John Smith": "PERSON",
		"Reform UK":  "ORG",
		"Leeds":      "GPE",
		"2024":       "GPE",
		"UK":         "GPE",
	}}
	spans := NewRecognizer(m, 3, nil).Recognize(text)

	require.Len(t, spans, 2)
	require.Equal(t, "John Smith", spans[0].Text)
	require.Equal(t, model.CategoryPerson, spans[0].Category)
	require.Equal(t, "Leeds", spans[1].Text)
	require.Equal(t, model.CategoryLocation, spans[1].Category)
	for _, s := range spans {
		require.Equal(t, s.Text, text[s.Start:s.End])
	}
}

func TestRecognizeRepeatedMentionsGetDistinctOffsets(t *testing.T) {
	text := "Jane Doe met voters. Jane Doe then left."
	m := &stubModel{entities: map[string]string{"Jane Doe": "PER"}}
	spans := NewRecognizer(m, 3, nil).Recognize(text)

	require.Len(t, spans, 2)
	require.Equal(t, 0, spans[0].Start)
	require.Equal(t, 21, spans[1].Start)
}

func TestRecognizeStripsLeadingTitlesFromPersons(t *testing.T) {
	text := "Cllr Jane Doe and Deputy Leader Sam Patel met the Leader."
	m := &stubModel{entities: map[string]string{
		"Cllr Jane Doe":           "PERSON",
		"Deputy Leader Sam Patel": "PERSON",
		"the Leader":              "PERSON",
	}}
	spans := NewRecognizer(m, 3, nil).Recognize(text)

	require.Len(t, spans, 3)
	require.Equal(t, "Jane Doe", spans[0].Text)
	require.Equal(t, 5, spans[0].Start)
	require.Equal(t, "Sam Patel", spans[1].Text)
	require.Equal(t, "Leader", spans[2].Text)
	for _, s := range spans {
		require.Equal(t, s.Text, text[s.Start:s.End])
	}
}

func TestRecognizeDropsPersonThatIsOnlyTitleAndNoise(t *testing.T) {
	m := &stubModel{entities: map[string]string{"Cllr Bo": "PERSON"}}
	require.Empty(t, NewRecognizer(m, 3, nil).Recognize("Cllr Bo spoke."))
}

func TestTitlePrefixLength(t *testing.T) {
	tests := []struct {
		span string
		want int
	}{
		{"Jane Doe", 0},
		{"Cllr Jane Doe", 5},
		{"Cllr. Jane Doe", 6},
		{"Councillor  Jane Doe", 12},
		{"Deputy Leader Sam Patel", 14},
		{"Leader", 0},
		{"MP", 0},
		{"Mp Smith", 3},
	}
	for _, tt := range tests {
		t.Run(tt.span, func(t *testing.T) {
			require.Equal(t, tt.want, titlePrefixLength(tt.span))
		})
	}
}

func TestRecognizeModelErrorYieldsNothing(t *testing.T) {
	m := &stubModel{err: errors.New("boom")}
	require.Empty(t, NewRecognizer(m, 3, nil).Recognize("Leeds"))
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		entity    string
		from      int
		wantStart int
		wantEnd   int
		wantFound bool
	}{
		{"exact", "in Leeds today", "Leeds", 0, 3, 8, true},
		{"after cursor", "Leeds and Leeds", "Leeds", 5, 10, 15, true},
		{"wraps to start", "Leeds only", "Leeds", 8, 0, 5, true},
		{"respaced", "Stoke  on\nTrent", "Stoke on Trent", 0, 0, 15, true},
		{"tight tokens", "O'Neill said", "O ' Neill", 0, 0, 7, true},
		{"missing", "nothing here", "Leeds", 0, 0, 0, false},
		{"blank entity", "text", " ", 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, found := locate(tt.text, tt.entity, tt.from)
			require.Equal(t, tt.wantFound, found)
			if found {
				require.Equal(t, tt.wantStart, start)
				require.Equal(t, tt.wantEnd, end)
			}
		})
	}
}
