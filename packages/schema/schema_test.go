package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleDDS = `Dataset {
  Sequence {
    Float64 time;
    Float32 temperature;
    Int32 depth;
    String station_id;
    UInt16 flag;
  } s;
} example;`

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     []string
	}{
		{
			name:     "declarations in document order",
			document: sampleDDS,
			want:     []string{"time", "temperature", "depth", "station_id", "flag"},
		},
		{
			name:     "empty document",
			document: "",
			want:     []string{},
		},
		{
			name:     "no declarations",
			document: "Dataset {\n} empty;",
			want:     []string{},
		},
		{
			name:     "unknown type keywords are ignored",
			document: "Complex64 bogus;\nFloat32 real_one;",
			want:     []string{"real_one"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVariables(tt.document))
		})
	}
}

func TestExtractVariablesIdempotent(t *testing.T) {
	first := ExtractVariables(sampleDDS)
	second := ExtractVariables(sampleDDS)
	assert.Equal(t, first, second)
}
