package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleveque/stylelab/internal/model"
)

func TestParseWeights(t *testing.T) {
	tests := []struct {
		in      string
		want    []float64
		wantErr bool
	}{
		{"", nil, false},
		{"  ", nil, false},
		{"0.7,0.3", []float64{0.7, 0.3}, false},
		{"0.5, 0.5", []float64{0.5, 0.5}, false},
		{"0.5,heavy", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWeights(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStylesCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("STYLELAB_STORAGE_DATABASE_PATH", filepath.Join(dir, "stylelab.db"))
	t.Setenv("STYLELAB_STORAGE_IMAGE_DIR", filepath.Join(dir, "images"))

	var out bytes.Buffer
	root := rootCmd(&out)
	root.SetArgs([]string{"styles", "--json"})
	require.NoError(t, root.Execute())

	var presets []model.StylePreset
	require.NoError(t, json.Unmarshal(out.Bytes(), &presets))
	require.Len(t, presets, 6)
	assert.Equal(t, "realistic", presets[0].ID)
}

func TestOptimalCommand_NoHistory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("STYLELAB_STORAGE_DATABASE_PATH", filepath.Join(dir, "stylelab.db"))
	t.Setenv("STYLELAB_STORAGE_IMAGE_DIR", filepath.Join(dir, "images"))

	var out bytes.Buffer
	root := rootCmd(&out)
	root.SetArgs([]string{"optimal", "anime", "cyberpunk"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "guidance  7.50")
	assert.Contains(t, out.String(), "No historical data available")
}
