package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseCodeMapping(t *testing.T) {
	assert.Equal(t, CloseAuthRequired, AuthRequired.CloseCode())
	assert.Equal(t, CloseInvalidProof, InvalidProof.CloseCode())
	assert.Equal(t, CloseEnvelopeError, EnvelopeError.CloseCode())
	assert.Equal(t, CloseProtocolViolation, ProtocolViolation.CloseCode())
	assert.Equal(t, CloseHandshakeTimeout, Timeout.CloseCode())
	assert.Equal(t, CloseGoingAway, ServerGoingAway.CloseCode())
}

func TestNonClosingKindsReportInBand(t *testing.T) {
	assert.False(t, SessionInvalid.Closes())
	assert.False(t, UploadError.Closes())
	assert.False(t, RequestError.Closes())
	assert.Equal(t, 0, SessionInvalid.CloseCode())
	assert.Equal(t, 0, UploadError.CloseCode())
	assert.Equal(t, 0, RequestError.CloseCode())
}

func TestKindOf(t *testing.T) {
	err := Wrap(InvalidProof, AuthFailed, errors.New("bad M1"))
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, InvalidProof, kind)

	_, ok = KindOf(errors.New("plain error"))
	assert.False(t, ok)
}

func TestErrorMessageNeverLeaksUserExistence(t *testing.T) {
	unknownUser := New(InvalidProof, AuthFailed)
	wrongPassword := New(InvalidProof, AuthFailed)
	assert.Equal(t, unknownUser.Error(), wrongPassword.Error())
}
