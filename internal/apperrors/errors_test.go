package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsMatchByCode(t *testing.T) {
	err := fmt.Errorf("booking: %w", Wrap(CodeSlotTaken, "slot 10:00 is taken", errors.New("dup key")))

	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NotErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, CodeSlotTaken, CodeOf(err))
}

func TestKindOfForeignError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestKinds(t *testing.T) {
	cases := map[*Error]Kind{
		ErrMissingFields:        KindValidation,
		ErrInvalidStatus:        KindValidation,
		ErrDuplicateEmail:       KindConflict,
		ErrSlotUnavailable:      KindConflict,
		ErrInvalidToken:         KindAuth,
		ErrInvalidPassword:      KindAuth,
		ErrForbidden:            KindForbidden,
		ErrDoctorNotFound:       KindNotFound,
		ErrConsultationNotFound: KindNotFound,
	}
	for e, want := range cases {
		assert.Equal(t, want, e.Kind, e.Code)
	}
	assert.Equal(t, "internal", Internal("db down", errors.New("x")).Kind.String())
}
