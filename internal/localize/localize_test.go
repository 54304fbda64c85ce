// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package localize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLocalize(t *testing.T) {
	s, err := NewStatic()
	require.NoError(t, err)
	assert.Equal(t, []string{"ar", "ja", "ko", "zh"}, s.Languages())

	tests := []struct {
		name       string
		lang       string
		discipline string
		first      string
		count      int
	}{
		{"chinese compounds", "zh", "archaeology", "考古学研究", 3*2 + 5},
		{"arabic prefix", "ar", "Archaeology", "بحث علم الآثار Amphipolis", 3*2 + 4},
		{"japanese suffix", "ja", "ancient history", "歴史 研究", 3*2 + 2},
		{"unknown discipline falls back", "ko", "linguistics", "과학 연구", 3*2 + 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Localize(context.Background(), "Amphipolis", tt.lang, tt.discipline)
			require.NoError(t, err)
			require.Len(t, got, tt.count)
			assert.Equal(t, tt.first, got[0])
			assert.True(t, strings.HasSuffix(got[len(got)-1], " Amphipolis"))
		})
	}
}

func TestStaticUnsupportedLanguage(t *testing.T) {
	s, err := NewStatic()
	require.NoError(t, err)
	got, err := s.Localize(context.Background(), "Amphipolis", "el", "archaeology")
	assert.NoError(t, err)
	assert.Empty(t, got)
}

type fakeQuerier struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeQuerier) Query(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestModelLocalize(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"json array", "Here you go:\n```json\n[\"Αμφίπολη ανασκαφή\", \"τύμβος Καστά\"]\n```", []string{"Αμφίπολη ανασκαφή", "τύμβος Καστά"}},
		{"numbered lines", "1. Αμφίπολη ανασκαφή\n2) τύμβος Καστά\n\n", []string{"Αμφίπολη ανασκαφή", "τύμβος Καστά"}},
		{"duplicates dropped", `["a", "a", "b"]`, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{reply: tt.reply}
			got, err := NewModel(q, nil).Localize(context.Background(), "Amphipolis", "el", "archaeology")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, q.prompt, `"el"`)
			assert.Contains(t, q.prompt, "Amphipolis")
		})
	}
}

func TestChainFallsBack(t *testing.T) {
	s, err := NewStatic()
	require.NoError(t, err)
	failing := NewModel(&fakeQuerier{err: errors.New("offline")}, nil)
	model := NewModel(&fakeQuerier{reply: `["Αμφίπολη"]`}, nil)

	c := NewChain(nil, s, failing, model)

	got, err := c.Localize(context.Background(), "Amphipolis", "zh", "archaeology")
	require.NoError(t, err)
	assert.Equal(t, "考古学研究", got[0])

	got, err = c.Localize(context.Background(), "Amphipolis", "el", "archaeology")
	require.NoError(t, err)
	assert.Equal(t, []string{"Αμφίπολη"}, got)
}
