package franchise

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/skedutech/portal/core"
)

var (
	// errors
	ErrNotFound          = errors.New("franchise not found")
	ErrEmailExists       = errors.New("a franchise with this email already exists")
	ErrMobileExists      = errors.New("a franchise with this mobile number already exists")
	ErrFranchiseIDExists = errors.New("a franchise with this franchise id already exists")

	// ErrCredentialsEmailFailed reports the resend-credentials partial
	// failure: the stored password hash has already changed.
	ErrCredentialsEmailFailed = errors.New("password was changed but the credentials email could not be delivered")

	// createRetries bounds re-minting when the store rejects a generated
	// franchise id that raced with a concurrent insert.
	createRetries = 3
)

type (
	Repository interface {
		// CheckUniqueness reports ErrEmailExists / ErrMobileExists when
		// another record (outside excluded) already holds the value.
		CheckUniqueness(ctx context.Context, email, mobile string, excluded ...Franchise) error
		FranchiseIDExists(ctx context.Context, fid string) (bool, error)
		CreateFranchise(ctx context.Context, f Franchise) (Franchise, error)
		GetFranchiseByID(ctx context.Context, id string) (Franchise, error)
		// QueryFranchises applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Franchise.Name, Franchise.Owner or Franchise.Email.
		QueryFranchises(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Franchise, error)
		UpdateFranchise(ctx context.Context, f Franchise) (Franchise, error)
		DeleteFranchise(ctx context.Context, id string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email, mobile string, excluded ...Franchise) error
		Create(ctx context.Context, nf NewFranchise) (Franchise, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Franchise, error)
		QueryLive(ctx context.Context) ([]Franchise, error)
		QueryRequests(ctx context.Context) ([]Franchise, error)
		GetByID(ctx context.Context, id string) (Franchise, error)
		Update(ctx context.Context, id string, uf UpdateFranchise) (Franchise, error)
		Manage(ctx context.Context, id string, mf ManageFranchise) (Franchise, error)
		ResendCredentials(ctx context.Context, id string) (Franchise, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo           Repository
		mailSvc        core.EmailService
		logger         core.Logger
		defaultCountry string
		idDigits       int
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) Service {
	return &service{
		repo:           repo,
		mailSvc:        mailSvc,
		logger:         logger,
		defaultCountry: conf.DefaultCountry,
		idDigits:       conf.FranchiseIDSpace,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email, mobile string, excluded ...Franchise) error {
	return svc.conflict(svc.repo.CheckUniqueness(ctx, email, mobile, excluded...))
}

// conflict maps repository uniqueness errors to core.ConflictError so the
// API layer can answer 409.
func (svc *service) conflict(err error) error {
	switch errors.Cause(err) {
	case nil:
		return nil
	case ErrEmailExists:
		return core.NewConflictError(ErrEmailExists, "email")
	case ErrMobileExists:
		return core.NewConflictError(ErrMobileExists, "mobile")
	default:
		return err
	}
}

// Create registers an admin-created franchise in the (Pending, Pending)
// state with freshly minted credentials. No notification goes out here:
// credentials are only communicated on activation.
func (svc *service) Create(ctx context.Context, nf NewFranchise) (Franchise, error) {
	now := nowFunc().UTC()
	f := Franchise{
		Name:               nf.Name,
		Owner:              nf.Owner,
		Designation:        nf.Designation,
		DateOfBirth:        nf.DateOfBirth,
		Email:              nf.Email,
		Mobile:             nf.Mobile,
		Address:            nf.Address,
		State:              nf.State,
		City:               nf.City,
		Country:            nf.Country,
		Pincode:            nf.Pincode,
		GSTNumber:          nf.GSTNumber,
		InternalCode:       nf.InternalCode,
		ComputerCount:      nf.ComputerCount,
		StudentCount:       nf.StudentCount,
		PlanValidityDays:   nf.PlanValidityDays,
		Status:             StatusPending,
		VerificationStatus: VerificationPending,
		ApplicationType:    ApplicationAdminCreated,
		OwnerPhoto:         nf.OwnerPhoto,
		Signature:          nf.Signature,
		RequestDate:        now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if f.Country == "" {
		f.Country = svc.defaultCountry
	}

	// compute all derived values up front; the record is persisted exactly once
	pwd, err := generatePassword()
	if err != nil {
		return Franchise{}, err
	}
	if err = f.SetPassword(pwd); err != nil {
		return Franchise{}, errors.Wrap(err, "hashing password")
	}

	for attempt := 0; attempt < createRetries; attempt++ {
		fid, err := svc.mintFranchiseID(ctx)
		if err != nil {
			return Franchise{}, err
		}
		f.FranchiseID = fid

		created, err := svc.repo.CreateFranchise(ctx, f)
		if errors.Cause(err) == ErrFranchiseIDExists {
			// lost the check/insert race; re-mint
			continue
		}
		if err != nil {
			return Franchise{}, svc.conflict(err)
		}
		return created, nil
	}
	return Franchise{}, errors.Wrap(ErrFranchiseIDExists, "minting franchise id")
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Franchise, error) {
	return svc.repo.QueryFranchises(ctx, filter, ordering)
}

// QueryLive returns fully activated and verified franchises, name ascending.
func (svc *service) QueryLive(ctx context.Context) ([]Franchise, error) {
	filter := &QueryFilter{Status: StatusActive, VerificationStatus: VerificationVerified}
	ordering := []core.DBOrdering{{Field: "name", Ascending: true}}
	return svc.repo.QueryFranchises(ctx, filter, ordering)
}

// QueryRequests returns records still short of the (Active, Verified) state,
// most recent request first.
func (svc *service) QueryRequests(ctx context.Context) ([]Franchise, error) {
	filter := &QueryFilter{NotLive: true}
	ordering := []core.DBOrdering{{Field: "request_date"}}
	return svc.repo.QueryFranchises(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Franchise, error) {
	return svc.repo.GetFranchiseByID(ctx, id)
}

// Update modifies profile fields only; lifecycle state, credentials and
// application type are untouchable here.
func (svc *service) Update(ctx context.Context, id string, uf UpdateFranchise) (Franchise, error) {
	f, err := svc.repo.GetFranchiseByID(ctx, id)
	if err != nil {
		return Franchise{}, err
	}

	f.Name = uf.Name
	f.Owner = uf.Owner
	f.Email = uf.Email
	f.Mobile = uf.Mobile
	if v := core.CleanString(uf.Designation); v != "" {
		f.Designation = v
	}
	if v := core.CleanString(uf.DateOfBirth); v != "" {
		f.DateOfBirth = v
	}
	if v := core.CleanString(uf.Address); v != "" {
		f.Address = v
	}
	if v := core.CleanString(uf.State); v != "" {
		f.State = v
	}
	if v := core.CleanString(uf.City); v != "" {
		f.City = v
	}
	if v := core.CleanString(uf.Country); v != "" {
		f.Country = v
	}
	if v := core.CleanString(uf.Pincode); v != "" {
		f.Pincode = v
	}
	if v := core.CleanString(uf.GSTNumber, true); v != "" {
		f.GSTNumber = v
	}
	if v := core.CleanString(uf.InternalCode); v != "" {
		f.InternalCode = v
	}
	if uf.ComputerCount != nil {
		f.ComputerCount = *uf.ComputerCount
	}
	if uf.StudentCount != nil {
		f.StudentCount = *uf.StudentCount
	}
	f.UpdatedAt = nowFunc().UTC()

	updated, err := svc.repo.UpdateFranchise(ctx, f)
	if err != nil {
		return Franchise{}, svc.conflict(err)
	}
	return updated, nil
}

// Manage applies a lifecycle transition. The first transition to Active
// stamps the activation date (exactly once) and mints credentials for
// records that lack them. After the new state is persisted, the final
// (status, verificationStatus) pair decides which notification goes out;
// delivery failures are logged and never fail the call.
func (svc *service) Manage(ctx context.Context, id string, mf ManageFranchise) (Franchise, error) {
	f, err := svc.repo.GetFranchiseByID(ctx, id)
	if err != nil {
		return Franchise{}, err
	}
	prevStatus := f.Status

	var plainPwd string
	if mf.Status == StatusActive && !f.IsActivated() {
		f.setActivationDate(nowFunc())

		// first-time activation of a record created without credentials
		// (e.g. a self-applied franchise)
		if f.FranchiseID == "" {
			fid, err := svc.mintFranchiseID(ctx)
			if err != nil {
				return Franchise{}, err
			}
			f.FranchiseID = fid
		}
		if len(f.PasswordHash) == 0 {
			pwd, err := generatePassword()
			if err != nil {
				return Franchise{}, err
			}
			if err = f.SetPassword(pwd); err != nil {
				return Franchise{}, errors.Wrap(err, "hashing password")
			}
			plainPwd = pwd
		}
	}

	if mf.Status != "" {
		f.Status = mf.Status
	}
	if mf.VerificationStatus != "" {
		f.VerificationStatus = mf.VerificationStatus
	}
	f.UpdatedAt = nowFunc().UTC()

	f, err = svc.repo.UpdateFranchise(ctx, f)
	if err != nil {
		return Franchise{}, errors.Wrap(err, "persisting lifecycle update")
	}

	// the notification is decided by the final persisted state, not by the
	// requested delta
	switch {
	case f.IsLive():
		if plainPwd == "" {
			// no password was minted in this call; the activation message
			// must still carry one
			pwd, err := generatePassword()
			if err != nil {
				return Franchise{}, err
			}
			if err = f.SetPassword(pwd); err != nil {
				return Franchise{}, errors.Wrap(err, "hashing password")
			}
			if f, err = svc.repo.UpdateFranchise(ctx, f); err != nil {
				return Franchise{}, errors.Wrap(err, "persisting minted password")
			}
			plainPwd = pwd
		}
		svc.mailSvc.SendMessages(svc.activationMail(f, plainPwd))
	case mf.Status == StatusRejected && prevStatus != StatusRejected:
		svc.mailSvc.SendMessages(svc.rejectionMail(f))
	case mf.Status == StatusInactive && prevStatus != StatusInactive:
		svc.mailSvc.SendMessages(svc.deactivationMail(f))
	}

	return f, nil
}

// ResendCredentials mints and persists a fresh password, then emails it
// along with the franchise id. The hash is committed before dispatch: a
// delivery failure reports ErrCredentialsEmailFailed so the caller knows
// the stored credential already changed.
func (svc *service) ResendCredentials(ctx context.Context, id string) (Franchise, error) {
	f, err := svc.repo.GetFranchiseByID(ctx, id)
	if err != nil {
		return Franchise{}, err
	}
	if f.FranchiseID == "" {
		fid, err := svc.mintFranchiseID(ctx)
		if err != nil {
			return Franchise{}, err
		}
		f.FranchiseID = fid
	}

	pwd, err := generatePassword()
	if err != nil {
		return Franchise{}, err
	}
	if err = f.SetPassword(pwd); err != nil {
		return Franchise{}, errors.Wrap(err, "hashing password")
	}
	f.UpdatedAt = nowFunc().UTC()

	f, err = svc.repo.UpdateFranchise(ctx, f)
	if err != nil {
		return Franchise{}, errors.Wrap(err, "persisting new password")
	}

	if err = svc.mailSvc.SendMessage(svc.credentialsMail(f, pwd)); err != nil {
		svc.logger.Error(fmt.Sprintf("sending credentials email: %v", err), err, f)
		return f, errors.Wrap(ErrCredentialsEmailFailed, "sending credentials email")
	}
	return f, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteFranchise(ctx, id)
}
