package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from  Status
		event Event
		want  Status
	}{
		{StatusDraft, EventStepMarked, StatusInProgress},
		{StatusInProgress, EventStepMarked, StatusInProgress},
		{StatusReadyForCalculation, EventStepMarked, StatusReadyForCalculation},
		{StatusCompleted, EventStepMarked, StatusCompleted},
		{StatusSubmitted, EventStepMarked, StatusSubmitted},
		{StatusArchived, EventStepMarked, StatusArchived},
		{StatusInProgress, EventMarkReady, StatusReadyForCalculation},
		{StatusReadyForCalculation, EventCalculate, StatusCompleted},
		{StatusDraft, EventSubmit, StatusSubmitted},
		{StatusInProgress, EventSubmit, StatusSubmitted},
		{StatusReadyForCalculation, EventSubmit, StatusSubmitted},
		{StatusCompleted, EventSubmit, StatusSubmitted},
		{StatusCompleted, EventArchive, StatusArchived},
		{StatusSubmitted, EventArchive, StatusArchived},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_StepMarkedNeverReturnsToDraft(t *testing.T) {
	for _, from := range Statuses() {
		got, err := Next(from, EventStepMarked)
		require.NoError(t, err)
		assert.NotEqual(t, StatusDraft, got, from)
	}
}

func TestNext_AlreadySubmitted(t *testing.T) {
	got, err := Next(StatusSubmitted, EventSubmit)
	assert.True(t, errors.Is(err, ErrAlreadySubmitted))
	assert.Equal(t, StatusSubmitted, got)
}

func TestNext_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from  Status
		event Event
	}{
		{StatusDraft, EventMarkReady},
		{StatusDraft, EventArchive},
		{StatusInProgress, EventCalculate},
		{StatusArchived, EventSubmit},
		{StatusArchived, EventArchive},
		{Status("BOGUS"), EventStepMarked},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			var terr *TransitionError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.from, terr.From)
			assert.Equal(t, tt.event, terr.Event)
			assert.Equal(t, tt.from, got)
			assert.Contains(t, err.Error(), "cannot apply")
		})
	}
}

func TestParseStatusAndEvent(t *testing.T) {
	for _, s := range Statuses() {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("draft")
	assert.Error(t, err)

	e, err := ParseEvent("archive")
	require.NoError(t, err)
	assert.Equal(t, EventArchive, e)
	_, err = ParseEvent("reopen")
	assert.Error(t, err)
}
