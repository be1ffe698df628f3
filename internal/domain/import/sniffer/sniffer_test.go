package sniffer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConfig(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		delimiter   rune
		skipLines   int
		hasHeader   bool
		headerLines int
	}{
		{
			name:        "comma with header",
			data:        "title,type,value,category\nBus,outcome,50,Transport\n",
			delimiter:   ',',
			hasHeader:   true,
			headerLines: 1,
		},
		{
			name:        "semicolon with portuguese header",
			data:        "Título;Tipo;Valor;Categoria\nAutocarro;outcome;1,50;Transportes\n",
			delimiter:   ';',
			hasHeader:   true,
			headerLines: 1,
		},
		{
			name:        "tab without header",
			data:        "Bus\toutcome\t50\tTransport\n",
			delimiter:   '\t',
			headerLines: 0,
		},
		{
			name:        "metadata lines before header",
			data:        "\uFEFFAccount export\nGenerated 2024-01-31\n\ntitle|type|value|category\nBus|outcome|50|Transport\n",
			delimiter:   '|',
			skipLines:   2,
			hasHeader:   true,
			headerLines: 3,
		},
		{
			name:        "windows line endings",
			data:        "title,type,value,category\r\nBus,outcome,50,Transport\r\n",
			delimiter:   ',',
			hasHeader:   true,
			headerLines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := DetectConfig([]byte(tt.data))
			require.NoError(t, err)

			assert.Equal(t, tt.delimiter, cfg.Delimiter)
			assert.Equal(t, tt.skipLines, cfg.SkipLines)
			assert.Equal(t, tt.hasHeader, cfg.HasHeader)

			opts := cfg.ParserOptions()
			assert.Equal(t, tt.delimiter, opts.Delimiter)
			assert.Equal(t, tt.headerLines, opts.HeaderLines)
		})
	}
}

func TestDetectConfig_Headers(t *testing.T) {
	cfg, err := DetectConfig([]byte(" title , type ,value,category\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "type", "value", "category"}, cfg.Headers)
}

func TestDetectConfig_Errors(t *testing.T) {
	_, err := DetectConfig(nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = DetectConfig([]byte("  \n\n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = DetectConfig([]byte("just some notes\nwithout columns\n"))
	assert.ErrorIs(t, err, ErrInvalidDelimiter)
}

func TestDetectReader_ReadsOnlyASample(t *testing.T) {
	data := "title,type,value,category\n" + strings.Repeat("Bus,outcome,50,Transport\n", SampleSize/10)

	cfg, err := DetectReader(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ',', cfg.Delimiter)
	assert.True(t, cfg.HasHeader)
}
