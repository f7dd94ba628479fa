package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwingupta21/VR-API/errors"
)

func TestDecodeThreshold(t *testing.T) {
	d := NewDecoder(0)

	tests := []struct {
		line  string
		value int
		event Event
	}{
		{"0", 0, EventRest},
		{"50", 50, EventRest},
		{"99", 99, EventRest},
		{"100", 100, EventRest}, // exactly at threshold is rest
		{"101", 101, EventActive},
		{"150", 150, EventActive},
		{"9999", 9999, EventActive},
		{"-20", -20, EventRest},
		{"  150  ", 150, EventActive},
		{"101\r", 101, EventActive}, // CRLF devices leave a trailing CR
		{"\t42\n", 42, EventRest},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			value, event, err := d.Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, tt.event, event)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	d := NewDecoder(0)

	tests := []struct {
		name string
		line []byte
	}{
		{"empty", []byte("")},
		{"whitespace only", []byte("   \r\n")},
		{"non-numeric", []byte("hello")},
		{"float", []byte("101.5")},
		{"trailing garbage", []byte("101x")},
		{"invalid utf8", []byte{0xff, 0xfe, 0x31}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := d.Decode(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrParsingFailed))
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestDecodeRecoversAfterMalformed(t *testing.T) {
	d := NewDecoder(0)

	_, _, err := d.Decode([]byte("garbage"))
	require.Error(t, err)

	// Decoder is stateless: the next sample is processed normally
	value, event, err := d.Decode([]byte("150"))
	require.NoError(t, err)
	assert.Equal(t, 150, value)
	assert.Equal(t, EventActive, event)
}

func TestCustomThreshold(t *testing.T) {
	d := NewDecoder(10)

	assert.Equal(t, EventRest, d.Classify(10))
	assert.Equal(t, EventActive, d.Classify(11))
}

func TestEventWireFormat(t *testing.T) {
	assert.Equal(t, "0", EventRest.String())
	assert.Equal(t, "1", EventActive.String())
	assert.Equal(t, []byte("0"), EventRest.Frame())
	assert.Equal(t, []byte("1"), EventActive.Frame())
}
