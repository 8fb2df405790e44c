package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
)

const uniqueViolation = "23505"

// orderableColumns is the allowlist for user-supplied orderings.
var orderableColumns = map[string]bool{
	"name":         true,
	"owner":        true,
	"request_date": true,
	"created_at":   true,
}

type dbFranchise struct {
	ID                 string      `db:"id"`
	Name               string      `db:"name"`
	Owner              string      `db:"owner"`
	Designation        string      `db:"designation"`
	DateOfBirth        string      `db:"date_of_birth"`
	Email              string      `db:"email"`
	Mobile             string      `db:"mobile"`
	Address            string      `db:"address"`
	State              string      `db:"state"`
	City               string      `db:"city"`
	Country            string      `db:"country"`
	Pincode            string      `db:"pincode"`
	GSTNumber          null.String `db:"gst_number"`
	InternalCode       null.String `db:"internal_code"`
	ComputerCount      int         `db:"computer_count"`
	StudentCount       int         `db:"student_count"`
	PlanValidityDays   int         `db:"plan_validity_days"`
	FranchiseID        null.String `db:"franchise_id"`
	PasswordHash       null.Bytes  `db:"password_hash"`
	Status             string      `db:"status"`
	VerificationStatus string      `db:"verification_status"`
	ApplicationType    string      `db:"application_type"`
	OwnerPhotoID       null.String `db:"owner_photo_id"`
	OwnerPhotoURL      null.String `db:"owner_photo_url"`
	SignatureID        null.String `db:"signature_id"`
	SignatureURL       null.String `db:"signature_url"`
	RequestDate        time.Time   `db:"request_date"`
	ActivationDate     null.Time   `db:"activation_date"`
	ExpireDate         null.Time   `db:"expire_date"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

type franchiseRepository struct {
	db *sqlx.DB
}

var _ franchise.Repository = (*franchiseRepository)(nil) // interface compliance check

func NewFranchiseRepository(db *sql.DB) *franchiseRepository {
	return &franchiseRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo franchiseRepository) pack(f franchise.Franchise) dbFranchise {
	d := dbFranchise{
		ID:                 f.ID,
		Name:               f.Name,
		Owner:              f.Owner,
		Designation:        f.Designation,
		DateOfBirth:        f.DateOfBirth,
		Email:              f.Email,
		Mobile:             f.Mobile,
		Address:            f.Address,
		State:              f.State,
		City:               f.City,
		Country:            f.Country,
		Pincode:            f.Pincode,
		GSTNumber:          null.NewString(f.GSTNumber, f.GSTNumber != ""),
		InternalCode:       null.NewString(f.InternalCode, f.InternalCode != ""),
		ComputerCount:      f.ComputerCount,
		StudentCount:       f.StudentCount,
		PlanValidityDays:   f.PlanValidityDays,
		FranchiseID:        null.NewString(f.FranchiseID, f.FranchiseID != ""),
		PasswordHash:       null.NewBytes(f.PasswordHash, f.PasswordHash != nil),
		Status:             string(f.Status),
		VerificationStatus: string(f.VerificationStatus),
		ApplicationType:    string(f.ApplicationType),
		RequestDate:        f.RequestDate.UTC(),
		ActivationDate:     null.TimeFromPtr(f.ActivationDate),
		ExpireDate:         null.TimeFromPtr(f.ExpireDate),
		CreatedAt:          f.CreatedAt.UTC(),
		UpdatedAt:          f.UpdatedAt.UTC(),
	}
	if f.OwnerPhoto != nil {
		d.OwnerPhotoID = null.StringFrom(f.OwnerPhoto.ID)
		d.OwnerPhotoURL = null.StringFrom(f.OwnerPhoto.URL)
	}
	if f.Signature != nil {
		d.SignatureID = null.StringFrom(f.Signature.ID)
		d.SignatureURL = null.StringFrom(f.Signature.URL)
	}
	return d
}

func (repo franchiseRepository) unpack(d dbFranchise) franchise.Franchise {
	f := franchise.Franchise{
		ID:                 d.ID,
		Name:               d.Name,
		Owner:              d.Owner,
		Designation:        d.Designation,
		DateOfBirth:        d.DateOfBirth,
		Email:              d.Email,
		Mobile:             d.Mobile,
		Address:            d.Address,
		State:              d.State,
		City:               d.City,
		Country:            d.Country,
		Pincode:            d.Pincode,
		GSTNumber:          d.GSTNumber.String,
		InternalCode:       d.InternalCode.String,
		ComputerCount:      d.ComputerCount,
		StudentCount:       d.StudentCount,
		PlanValidityDays:   d.PlanValidityDays,
		FranchiseID:        d.FranchiseID.String,
		PasswordHash:       d.PasswordHash.Bytes,
		Status:             franchise.Status(d.Status),
		VerificationStatus: franchise.VerificationStatus(d.VerificationStatus),
		ApplicationType:    franchise.ApplicationType(d.ApplicationType),
		RequestDate:        d.RequestDate,
		ActivationDate:     d.ActivationDate.Ptr(),
		ExpireDate:         d.ExpireDate.Ptr(),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.OwnerPhotoID.Valid {
		f.OwnerPhoto = &core.StoredFile{ID: d.OwnerPhotoID.String, URL: d.OwnerPhotoURL.String}
	}
	if d.SignatureID.Valid {
		f.Signature = &core.StoredFile{ID: d.SignatureID.String, URL: d.SignatureURL.String}
	}
	return f
}

// trapErr maps psql errors to the franchise package sentinels: "no rows" to
// ErrNotFound, unique-index violations to the matching ErrXxxExists. The
// unique indexes are the authoritative uniqueness guard.
func (repo franchiseRepository) trapErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return franchise.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case "franchise_email_key":
			return franchise.ErrEmailExists
		case "franchise_mobile_key":
			return franchise.ErrMobileExists
		case "franchise_franchise_id_key":
			return franchise.ErrFranchiseIDExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo franchiseRepository) CheckUniqueness(ctx context.Context, email, mobile string, excluded ...franchise.Franchise) error {
	query := `SELECT email, mobile FROM franchise WHERE (email = $1 OR mobile = $2)`
	args := []interface{}{email, mobile}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, f := range excluded {
			ids = append(ids, f.ID)
		}
		query += ` AND id != ALL($3)`
		args = append(args, pq.Array(ids))
	}

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking franchise uniqueness")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var e, m string
		if err = rows.Scan(&e, &m); err != nil {
			return errors.Wrap(err, "checking franchise uniqueness")
		}
		if e == email {
			return franchise.ErrEmailExists
		}
		if m == mobile {
			return franchise.ErrMobileExists
		}
	}
	return errors.Wrap(rows.Err(), "checking franchise uniqueness")
}

func (repo franchiseRepository) FranchiseIDExists(ctx context.Context, fid string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM franchise WHERE franchise_id = $1)`, fid)
	if err != nil {
		return false, errors.Wrap(err, "checking franchise id")
	}
	return exists, nil
}

func (repo franchiseRepository) CreateFranchise(ctx context.Context, f franchise.Franchise) (franchise.Franchise, error) {
	f.ID = uuid.New().String()
	d := repo.pack(f)

	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO franchise (
			id, name, owner, designation, date_of_birth, email, mobile,
			address, state, city, country, pincode, gst_number, internal_code,
			computer_count, student_count, plan_validity_days, franchise_id,
			password_hash, status, verification_status, application_type,
			owner_photo_id, owner_photo_url, signature_id, signature_url,
			request_date, activation_date, expire_date, created_at, updated_at
		) VALUES (
			:id, :name, :owner, :designation, :date_of_birth, :email, :mobile,
			:address, :state, :city, :country, :pincode, :gst_number, :internal_code,
			:computer_count, :student_count, :plan_validity_days, :franchise_id,
			:password_hash, :status, :verification_status, :application_type,
			:owner_photo_id, :owner_photo_url, :signature_id, :signature_url,
			:request_date, :activation_date, :expire_date, :created_at, :updated_at
		)`, d)
	if err != nil {
		return franchise.Franchise{}, repo.trapErr(err, "inserting franchise")
	}
	return repo.unpack(d), nil
}

func (repo franchiseRepository) GetFranchiseByID(ctx context.Context, id string) (franchise.Franchise, error) {
	var d dbFranchise
	if err := repo.db.GetContext(ctx, &d, `SELECT * FROM franchise WHERE id = $1`, id); err != nil {
		return franchise.Franchise{}, repo.trapErr(err, "getting franchise")
	}
	return repo.unpack(d), nil
}

func (repo franchiseRepository) QueryFranchises(ctx context.Context, filter *franchise.QueryFilter, ordering []core.DBOrdering) ([]franchise.Franchise, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, fmt.Sprintf(
				"(name ILIKE %[1]s OR owner ILIKE %[1]s OR email ILIKE %[1]s)", arg(val)))
		}
		if filter.Status != "" {
			where = append(where, "status = "+arg(string(filter.Status)))
		}
		if filter.VerificationStatus != "" {
			where = append(where, "verification_status = "+arg(string(filter.VerificationStatus)))
		}
		if filter.ApplicationType != "" {
			where = append(where, "application_type = "+arg(string(filter.ApplicationType)))
		}
		if !filter.RequestedFrom.IsZero() {
			where = append(where, "request_date >= "+arg(filter.RequestedFrom.UTC()))
		}
		if !filter.RequestedTo.IsZero() {
			where = append(where, "request_date <= "+arg(filter.RequestedTo.UTC()))
		}
		if filter.NotLive {
			where = append(where, fmt.Sprintf(
				"(status != %s OR verification_status != %s)",
				arg(string(franchise.StatusActive)), arg(string(franchise.VerificationVerified))))
		}
	}

	query := `SELECT * FROM franchise`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	orderBy := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if orderableColumns[ord.Field] {
			orderBy = append(orderBy, ord.String())
		}
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, "created_at DESC")
	}
	query += " ORDER BY " + strings.Join(orderBy, ", ")

	var ds []dbFranchise
	if err := repo.db.SelectContext(ctx, &ds, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying franchises")
	}
	fs := make([]franchise.Franchise, 0, len(ds))
	for _, d := range ds {
		fs = append(fs, repo.unpack(d))
	}
	return fs, nil
}

func (repo franchiseRepository) UpdateFranchise(ctx context.Context, f franchise.Franchise) (franchise.Franchise, error) {
	d := repo.pack(f)

	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE franchise SET
			name = :name, owner = :owner, designation = :designation,
			date_of_birth = :date_of_birth, email = :email, mobile = :mobile,
			address = :address, state = :state, city = :city, country = :country,
			pincode = :pincode, gst_number = :gst_number, internal_code = :internal_code,
			computer_count = :computer_count, student_count = :student_count,
			plan_validity_days = :plan_validity_days, franchise_id = :franchise_id,
			password_hash = :password_hash, status = :status,
			verification_status = :verification_status,
			owner_photo_id = :owner_photo_id, owner_photo_url = :owner_photo_url,
			signature_id = :signature_id, signature_url = :signature_url,
			activation_date = :activation_date, expire_date = :expire_date,
			updated_at = :updated_at
		WHERE id = :id`, d)
	if err != nil {
		return franchise.Franchise{}, repo.trapErr(err, "updating franchise")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return franchise.Franchise{}, franchise.ErrNotFound
	}
	return repo.GetFranchiseByID(ctx, f.ID)
}

func (repo franchiseRepository) DeleteFranchise(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM franchise WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting franchise")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return franchise.ErrNotFound
	}
	return nil
}
