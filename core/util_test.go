package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringifyScalars(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "number", data: `{"a": 3, "b": 1}`, want: `{"a": "3", "b": 1}`},
		{name: "float and bool", data: `{"a": 2.5, "c": false}`, want: `{"a": "2.5", "c": "false"}`},
		{name: "nested", data: `{"a": [1], "c": {"x": 1}}`, want: `{"a": null, "c": null}`},
		{name: "strings and nulls untouched", data: `{"a": "3", "c": null}`, want: `{"a": "3", "c": null}`},
		{name: "missing key", data: `{"b": 1}`, want: `{"b": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(StringifyScalars([]byte(tt.data), "a", "c")))
		})
	}

	for _, data := range []string{`[1, 2]`, `null`, `{"a": `} {
		assert.Equal(t, data, string(StringifyScalars([]byte(data), "a")))
	}
}
