package franchise

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/skedutech/portal/core"
)

// Status is the operational state of a franchise.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusRejected Status = "Rejected"
)

var AllStatuses = []Status{StatusPending, StatusActive, StatusInactive, StatusRejected}

// VerificationStatus tracks document/application verification, independently
// of the operational Status.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "Pending"
	VerificationVerified VerificationStatus = "Verified"
	VerificationRejected VerificationStatus = "Rejected"
)

var AllVerificationStatuses = []VerificationStatus{VerificationPending, VerificationVerified, VerificationRejected}

// ApplicationType records how the franchise entered the system. Immutable
// after creation.
type ApplicationType string

const (
	ApplicationAdminCreated     ApplicationType = "AdminCreated"
	ApplicationFranchiseApplied ApplicationType = "FranchiseApplied"
)

// PlanValidityChoices are the only plan intervals a franchise can be sold.
var PlanValidityChoices = []int{90, 180, 365}

type Franchise struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Owner              string             `json:"owner"`
	Designation        string             `json:"designation"`
	DateOfBirth        string             `json:"dateOfBirth"` // YYYY-MM-DD
	Email              string             `json:"email"`
	Mobile             string             `json:"mobile"`
	Address            string             `json:"address"`
	State              string             `json:"state"`
	City               string             `json:"city"`
	Country            string             `json:"country"`
	Pincode            string             `json:"pincode"`
	GSTNumber          string             `json:"gstNumber,omitempty"`
	InternalCode       string             `json:"internalCode,omitempty"`
	ComputerCount      int                `json:"computerCount"`
	StudentCount       int                `json:"studentCount"`
	PlanValidityDays   int                `json:"planValidityDays"`
	FranchiseID        string             `json:"franchiseId,omitempty"`
	PasswordHash       []byte             `json:"-"`
	Status             Status             `json:"status"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	ApplicationType    ApplicationType    `json:"applicationType"`
	OwnerPhoto         *core.StoredFile   `json:"ownerPhoto,omitempty"`
	Signature          *core.StoredFile   `json:"signature,omitempty"`
	RequestDate        time.Time          `json:"requestDate"` // UTC
	ActivationDate     *time.Time         `json:"activationDate,omitempty"`
	ExpireDate         *time.Time         `json:"expireDate,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"` // UTC
	UpdatedAt          time.Time          `json:"updatedAt"` // UTC
}

func (f *Franchise) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	f.PasswordHash = hash
	return nil
}

func (f *Franchise) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(f.PasswordHash, []byte(pwd))
}

func (f *Franchise) IsActivated() bool {
	return f.ActivationDate != nil
}

func (f *Franchise) IsLive() bool {
	return f.Status == StatusActive && f.VerificationStatus == VerificationVerified
}

func (f *Franchise) HasCredentials() bool {
	return f.FranchiseID != "" && len(f.PasswordHash) > 0
}

// setActivationDate stamps the activation date and keeps the expire date
// consistent with it: expireDate = activationDate + planValidityDays.
func (f *Franchise) setActivationDate(t time.Time) {
	if t.IsZero() {
		f.ActivationDate = nil
		f.ExpireDate = nil
		return
	}
	t = t.UTC()
	exp := t.AddDate(0, 0, f.PlanValidityDays)
	f.ActivationDate = &t
	f.ExpireDate = &exp
}

// NewFranchise contains information needed to create a new Franchise.
type NewFranchise struct {
	Name             string `json:"name" form:"name" validate:"required"`
	Owner            string `json:"owner" form:"owner" validate:"required"`
	Designation      string `json:"designation" form:"designation" validate:"required"`
	DateOfBirth      string `json:"dateOfBirth" form:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Email            string `json:"email" form:"email" validate:"required,email"`
	Mobile           string `json:"mobile" form:"mobile" validate:"required,numeric,len=10"`
	Address          string `json:"address" form:"address" validate:"required"`
	State            string `json:"state" form:"state" validate:"required"`
	City             string `json:"city" form:"city" validate:"required"`
	Country          string `json:"country" form:"country"`
	Pincode          string `json:"pincode" form:"pincode" validate:"required,numeric,len=6"`
	GSTNumber        string `json:"gstNumber" form:"gstNumber" validate:"omitempty,alphanum"`
	InternalCode     string `json:"internalCode" form:"internalCode"`
	ComputerCount    int    `json:"computerCount" form:"computerCount" validate:"omitempty,min=0"`
	StudentCount     int    `json:"studentCount" form:"studentCount" validate:"omitempty,min=0"`
	PlanValidityDays int    `json:"planValidityDays" form:"planValidityDays" validate:"required,planvalidity"`

	// uploaded documents, set by the API layer after the blob storage
	// collaborator accepted them
	OwnerPhoto *core.StoredFile `json:"-" form:"-"`
	Signature  *core.StoredFile `json:"-" form:"-"`
}

func (nf *NewFranchise) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nf.Name = core.CleanString(nf.Name)
	nf.Owner = core.CleanString(nf.Owner)
	nf.Designation = core.CleanString(nf.Designation)
	nf.Email = core.CleanString(nf.Email, true /* lower */)
	nf.Mobile = core.CleanString(nf.Mobile)
	nf.Address = core.CleanString(nf.Address)
	nf.State = core.CleanString(nf.State)
	nf.City = core.CleanString(nf.City)
	nf.Country = core.CleanString(nf.Country)
	nf.Pincode = core.CleanString(nf.Pincode)
	nf.GSTNumber = core.CleanString(nf.GSTNumber, true)

	if err := validate.Struct(nf); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nf.Email, nf.Mobile)
}

// UpdateFranchise defines what profile information may be provided to modify
// an existing Franchise. Lifecycle fields (status, verification, credentials,
// application type) are out of its reach.
type UpdateFranchise struct {
	Name          string `json:"name" form:"name"`
	Owner         string `json:"owner" form:"owner"`
	Designation   string `json:"designation" form:"designation"`
	DateOfBirth   string `json:"dateOfBirth" form:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Email         string `json:"email" form:"email" validate:"omitempty,email"`
	Mobile        string `json:"mobile" form:"mobile" validate:"omitempty,numeric,len=10"`
	Address       string `json:"address" form:"address"`
	State         string `json:"state" form:"state"`
	City          string `json:"city" form:"city"`
	Country       string `json:"country" form:"country"`
	Pincode       string `json:"pincode" form:"pincode" validate:"omitempty,numeric,len=6"`
	GSTNumber     string `json:"gstNumber" form:"gstNumber" validate:"omitempty,alphanum"`
	InternalCode  string `json:"internalCode" form:"internalCode"`
	ComputerCount *int   `json:"computerCount" form:"computerCount" validate:"omitempty,min=0"`
	StudentCount  *int   `json:"studentCount" form:"studentCount" validate:"omitempty,min=0"`
}

func (uf *UpdateFranchise) Validate(ctx context.Context, orig Franchise, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uf.Name); name != "" {
		uf.Name = name
	} else {
		uf.Name = orig.Name
	}
	if owner := core.CleanString(uf.Owner); owner != "" {
		uf.Owner = owner
	} else {
		uf.Owner = orig.Owner
	}
	if email := core.CleanString(uf.Email, true /* lower */); email != "" {
		uf.Email = email
	} else {
		uf.Email = orig.Email
	}
	if mobile := core.CleanString(uf.Mobile); mobile != "" {
		uf.Mobile = mobile
	} else {
		uf.Mobile = orig.Mobile
	}

	if err := validate.Struct(uf); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uf.Email, uf.Mobile, orig)
}

// ManageFranchise carries a lifecycle transition request. At least one of the
// two fields must be provided.
type ManageFranchise struct {
	Status             Status             `json:"status" validate:"omitempty,franchisestatus"`
	VerificationStatus VerificationStatus `json:"verificationStatus" validate:"omitempty,verificationstatus"`
}

func (mf *ManageFranchise) Validate(validate *validator.Validate) error {
	mf.Status = Status(core.CleanString(string(mf.Status)))
	mf.VerificationStatus = VerificationStatus(core.CleanString(string(mf.VerificationStatus)))
	return validate.Struct(mf)
}

type QueryFilter struct {
	Search             string             `query:"search"`
	Status             Status             `query:"status"`
	VerificationStatus VerificationStatus `query:"verificationStatus"`
	ApplicationType    ApplicationType    `query:"applicationType"`
	RequestedFrom      time.Time          `query:"requestedFrom"`
	RequestedTo        time.Time          `query:"requestedTo"`

	// NotLive selects records that are not yet fully activated+verified
	// (the "requests" view).
	NotLive bool `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.VerificationStatus == "" &&
		qf.ApplicationType == "" && qf.RequestedFrom.IsZero() && qf.RequestedTo.IsZero() && !qf.NotLive
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = Status(core.CleanString(string(qf.Status)))
	qf.VerificationStatus = VerificationStatus(core.CleanString(string(qf.VerificationStatus)))
}
