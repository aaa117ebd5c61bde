package types

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestCreateApplicationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateApplicationRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  CreateApplicationRequest{CompanyID: uuid.New().String(), CompanyName: "Acme Infra Ltd"},
		},
		{
			name:    "missing company id",
			req:     CreateApplicationRequest{CompanyName: "Acme"},
			wantErr: true,
		},
		{
			name:    "company id not a uuid",
			req:     CreateApplicationRequest{CompanyID: "acme", CompanyName: "Acme"},
			wantErr: true,
		},
		{
			name:    "missing name",
			req:     CreateApplicationRequest{CompanyID: uuid.New().String()},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMarkStepRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     MarkStepRequest
		wantErr bool
	}{
		{name: "completed true", req: MarkStepRequest{Completed: boolPtr(true)}},
		{name: "completed false is set", req: MarkStepRequest{Completed: boolPtr(false)}},
		{name: "with records", req: MarkStepRequest{Completed: boolPtr(true), RecordIDs: []string{"1", "2"}}},
		{name: "missing completed", req: MarkStepRequest{}, wantErr: true},
		{name: "empty record id", req: MarkStepRequest{Completed: boolPtr(true), RecordIDs: []string{""}}, wantErr: true},
		{name: "record id too long", req: MarkStepRequest{Completed: boolPtr(true), RecordIDs: []string{strings.Repeat("x", 129)}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransitionRequest_Validate(t *testing.T) {
	assert.NoError(t, (&TransitionRequest{Event: "archive"}).Validate())
	assert.Error(t, (&TransitionRequest{Event: "submit"}).Validate())
	assert.Error(t, (&TransitionRequest{}).Validate())
}

func TestErrApplicationNotFound(t *testing.T) {
	id := uuid.New()
	err := &ErrApplicationNotFound{ID: id}
	assert.Equal(t, "application not found: "+id.String(), err.Error())
}
