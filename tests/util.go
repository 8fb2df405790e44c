package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
)

// NewConfig returns a config suitable for tests; nothing external is touched.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "SK Edutech",
		Env:              "TEST",
		Debug:            false,
		TestMode:         true,
		DefaultFromName:  "SK Edutech",
		DefaultFromAddr:  "noreply@skedutech.test",
		DefaultCountry:   "India",
		FrontendBaseURL:  "http://localhost:3000",
		FranchiseIDSpace: 6,
	}
}

// NopLogger drops everything. It keeps noisy collaborators quiet in tests.
type NopLogger struct{}

var _ core.Logger = (*NopLogger)(nil)

func (NopLogger) Debug(msg string, args ...interface{}) {}
func (NopLogger) Info(msg string, args ...interface{})  {}
func (NopLogger) Warn(msg string, args ...interface{})  {}
func (NopLogger) Error(msg string, args ...interface{}) {}
func (NopLogger) Fatal(msg string, args ...interface{}) {}

// CreateFranchise persists a minimal valid franchise record straight through
// the repository, bypassing the service.
func CreateFranchise(
	t *testing.T,
	repo franchise.Repository,
	name, owner, email, mobile string,
	requestDate ...time.Time,
) franchise.Franchise {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(requestDate) > 0 {
		tstamp = requestDate[0].UTC()
	}
	f := franchise.Franchise{
		Name:               name,
		Owner:              owner,
		Designation:        "Owner",
		DateOfBirth:        "1985-06-15",
		Email:              email,
		Mobile:             mobile,
		Address:            "12 MG Road",
		State:              "Karnataka",
		City:               "Bengaluru",
		Country:            "India",
		Pincode:            "560001",
		PlanValidityDays:   365,
		Status:             franchise.StatusPending,
		VerificationStatus: franchise.VerificationPending,
		ApplicationType:    franchise.ApplicationAdminCreated,
		RequestDate:        tstamp,
		CreatedAt:          tstamp,
		UpdatedAt:          tstamp,
	}
	f, err := repo.CreateFranchise(context.Background(), f)
	if err != nil {
		t.Fatalf("CreateFranchise() failed: %v", err)
	}
	return f
}
