package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommonLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	l, err := CommonLogger(NewConfig(`tests`).WithWriter(buf))
	require.NoError(t, err, "Failed to create logger")

	l.Info("hello", KeyGuildID, "123")

	got := make(map[string]any)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "tests", got["app"])
	require.Equal(t, "hello", got["msg"])
	require.Equal(t, "123", got[KeyGuildID])
}

func TestConfig_WithLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{name: "empty", level: ""},
		{name: "debug", level: "debug"},
		{name: "upper", level: "WARN"},
		{name: "error", level: "error"},
		{name: "unknown", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(`tests`).WithLevel(tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCommonLogger_DropsBelowLevel(t *testing.T) {
	buf := new(bytes.Buffer)
	c := NewConfig(`tests`).WithWriter(buf)
	require.NoError(t, c.WithLevel("error"))

	l, err := CommonLogger(c)
	require.NoError(t, err)

	l.Info("ignored")
	require.Zero(t, buf.Len())
}
