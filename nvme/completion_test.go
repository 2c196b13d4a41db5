package nvme

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/prpsweep/pkg"
)

func TestStatusFields(t *testing.T) {
	s := MakeStatus(SCTMediaError, 0x81).WithDNR()
	assert.Equal(t, uint8(SCTMediaError), s.SCT())
	assert.Equal(t, uint8(0x81), s.SC())
	assert.True(t, s.DNR())
	assert.False(t, s.Success())
	assert.True(t, MakeStatus(SCTGeneric, SCSuccess).Success())
}

func TestStatusErr(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   error
	}{
		{"success", MakeStatus(SCTGeneric, SCSuccess), nil},
		{"invalid opcode", MakeStatus(SCTGeneric, SCInvalidOpcode), pkg.ErrInvalidOpcode},
		{"invalid field", MakeStatus(SCTGeneric, SCInvalidField), pkg.ErrInvalidField},
		{"prp offset", MakeStatus(SCTGeneric, SCPRPOffsetInvalid), pkg.ErrInvalidField},
		{"data transfer", MakeStatus(SCTGeneric, SCDataTransferError), pkg.ErrDataTransfer},
		{"abort", MakeStatus(SCTGeneric, SCAbortRequested), pkg.ErrAborted},
		{"lba range", MakeStatus(SCTGeneric, SCLBAOutOfRange), pkg.ErrLBAOutOfRange},
		{"internal", MakeStatus(SCTGeneric, SCInternalError), pkg.ErrTransportFailure},
		{"media", MakeStatus(SCTMediaError, 0x81), pkg.ErrTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.status.Err()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.Status)
		})
	}
}

func TestCompletionMarshalRoundTrip(t *testing.T) {
	c := Completion{
		DW0:    0xFFEE_DDCC,
		SQHead: 1,
		SQID:   1,
		CID:    0x77,
		Phase:  true,
		Status: MakeStatus(SCTGeneric, SCInvalidField).WithDNR(),
	}

	buf := make([]byte, CompletionSize)
	require.Equal(t, CompletionSize, c.MarshalTo(buf))
	assert.True(t, PhaseOf(buf))

	var got Completion
	require.True(t, ParseCompletion(buf, &got))
	assert.Equal(t, c, got)

	c.Phase = false
	c.MarshalTo(buf)
	assert.False(t, PhaseOf(buf))
}

func TestCompletionShortBuffer(t *testing.T) {
	var c Completion
	assert.Equal(t, 0, c.MarshalTo(make([]byte, 8)))
	assert.False(t, ParseCompletion(make([]byte, 8), &c))
	assert.False(t, PhaseOf(make([]byte, 8)))
}
