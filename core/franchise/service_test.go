package franchise_test

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
	emailsvc "github.com/skedutech/portal/services/email"
	inmemdb "github.com/skedutech/portal/storage/database/inmem"
	testutil "github.com/skedutech/portal/tests"
)

var fidRegexp = regexp.MustCompile(`^[A-Z]{2}[0-9]{6}$`)

func setup(t *testing.T) (franchise.Service, franchise.Repository, *emailsvc.ConsoleServiceMock) {
	t.Helper()

	conf := testutil.NewConfig()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewFranchiseRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	svc := franchise.NewService(repo, mailSvc, testutil.NopLogger{}, conf)
	return svc, repo, mailSvc
}

func TestService_Create(t *testing.T) {
	svc, _, mailSvc := setup(t)
	ctx := context.Background()

	nf := franchise.NewFranchise{
		Name:             "Bright Minds Academy",
		Owner:            "Asha Rao",
		Designation:      "Director",
		DateOfBirth:      "1985-06-15",
		Email:            "asha@brightminds.test",
		Mobile:           "9876543210",
		Address:          "12 MG Road",
		State:            "Karnataka",
		City:             "Bengaluru",
		Pincode:          "560001",
		PlanValidityDays: 180,
	}
	f, err := svc.Create(ctx, nf)
	require.NoError(t, err)

	assert.Equal(t, franchise.StatusPending, f.Status)
	assert.Equal(t, franchise.VerificationPending, f.VerificationStatus)
	assert.Equal(t, franchise.ApplicationAdminCreated, f.ApplicationType)
	assert.Equal(t, "India", f.Country) // default applied
	assert.Regexp(t, fidRegexp, f.FranchiseID)
	assert.True(t, f.HasCredentials())
	assert.False(t, f.IsActivated())
	assert.Nil(t, f.ExpireDate)
	assert.False(t, f.RequestDate.IsZero())

	// pending registration triggers no notification
	assert.Empty(t, mailSvc.SentMessages)
}

func TestService_Create_duplicate(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	testutil.CreateFranchise(t, repo, "Existing", "Old Owner", "taken@test.in", "9000000001")

	nf := franchise.NewFranchise{
		Name:             "Newcomer",
		Owner:            "New Owner",
		Designation:      "Owner",
		DateOfBirth:      "1990-01-01",
		Email:            "taken@test.in",
		Mobile:           "9000000002",
		Address:          "1 Park St",
		State:            "WB",
		City:             "Kolkata",
		Pincode:          "700016",
		PlanValidityDays: 90,
	}
	_, err := svc.Create(ctx, nf)
	require.Error(t, err)

	var conflictErr *core.ConflictError
	assert.True(t, errors.As(err, &conflictErr), "want ConflictError, got %v", err)
	assert.Equal(t, "email", conflictErr.Field)
}

// flakyCreateRepo rejects the first few inserts with ErrFranchiseIDExists,
// as a concurrent insert winning the check/insert race would.
type flakyCreateRepo struct {
	franchise.Repository
	failures int
	seenIDs  []string
}

func (r *flakyCreateRepo) CreateFranchise(ctx context.Context, f franchise.Franchise) (franchise.Franchise, error) {
	r.seenIDs = append(r.seenIDs, f.FranchiseID)
	if r.failures > 0 {
		r.failures--
		return franchise.Franchise{}, franchise.ErrFranchiseIDExists
	}
	return r.Repository.CreateFranchise(ctx, f)
}

func TestService_Create_idCollisionRemints(t *testing.T) {
	conf := testutil.NewConfig()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := &flakyCreateRepo{Repository: inmemdb.NewFranchiseRepository(db), failures: 2}
	svc := franchise.NewService(repo, emailsvc.NewConsoleServiceMock(conf), testutil.NopLogger{}, conf)

	nf := franchise.NewFranchise{
		Name:             "Retry Centre",
		Owner:            "Dev Patel",
		Designation:      "Owner",
		DateOfBirth:      "1988-02-02",
		Email:            "dev@test.in",
		Mobile:           "9000000070",
		Address:          "3 Lake View",
		State:            "Gujarat",
		City:             "Surat",
		Pincode:          "395003",
		PlanValidityDays: 365,
	}
	f, err := svc.Create(context.Background(), nf)
	require.NoError(t, err)
	assert.Regexp(t, fidRegexp, f.FranchiseID)

	// every attempt carried a freshly minted id
	require.Len(t, repo.seenIDs, 3)
	assert.NotEqual(t, repo.seenIDs[0], repo.seenIDs[1])
	assert.NotEqual(t, repo.seenIDs[1], repo.seenIDs[2])
	assert.Equal(t, repo.seenIDs[2], f.FranchiseID)
}

func TestService_Create_idCollisionGivesUp(t *testing.T) {
	conf := testutil.NewConfig()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := &flakyCreateRepo{Repository: inmemdb.NewFranchiseRepository(db), failures: 1 << 10}
	svc := franchise.NewService(repo, emailsvc.NewConsoleServiceMock(conf), testutil.NopLogger{}, conf)

	nf := franchise.NewFranchise{
		Name:             "Doomed Centre",
		Owner:            "Kiran Das",
		Designation:      "Owner",
		DateOfBirth:      "1991-03-03",
		Email:            "kiran@test.in",
		Mobile:           "9000000071",
		Address:          "9 Hill Rd",
		State:            "Odisha",
		City:             "Cuttack",
		Pincode:          "753001",
		PlanValidityDays: 90,
	}
	_, err = svc.Create(context.Background(), nf)
	require.Error(t, err)
	assert.Equal(t, franchise.ErrFranchiseIDExists, errors.Cause(err))
	assert.Len(t, repo.seenIDs, 3)
}

func TestService_Manage_firstActivation(t *testing.T) {
	svc, repo, mailSvc := setup(t)
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	restore := franchise.SetNowFunc(func() time.Time { return now })
	defer restore()

	f := testutil.CreateFranchise(t, repo, "Sunrise Centre", "Vikram Shah", "vikram@test.in", "9000000010")
	require.False(t, f.HasCredentials())

	got, err := svc.Manage(ctx, f.ID, franchise.ManageFranchise{
		Status:             franchise.StatusActive,
		VerificationStatus: franchise.VerificationVerified,
	})
	require.NoError(t, err)

	require.NotNil(t, got.ActivationDate)
	assert.Equal(t, now, *got.ActivationDate)
	require.NotNil(t, got.ExpireDate)
	assert.Equal(t, now.AddDate(0, 0, 365), *got.ExpireDate)

	// credentials were minted on the way to Active
	assert.Regexp(t, fidRegexp, got.FranchiseID)
	assert.True(t, got.HasCredentials())

	require.Len(t, mailSvc.SentMessages, 1)
	assert.Equal(t, "franchise-activated", mailSvc.SentMessages[0].TemplateName)
	assert.Equal(t, "vikram@test.in", mailSvc.SentMessages[0].To[0].Address)
}

func TestService_Manage_activationDateSetOnce(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	first := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	restore := franchise.SetNowFunc(func() time.Time { return first })
	f := testutil.CreateFranchise(t, repo, "Evergreen", "Meena Pillai", "meena@test.in", "9000000020")

	got, err := svc.Manage(ctx, f.ID, franchise.ManageFranchise{Status: franchise.StatusActive})
	require.NoError(t, err)
	require.NotNil(t, got.ActivationDate)
	restore()

	// deactivate, then re-activate much later
	_, err = svc.Manage(ctx, f.ID, franchise.ManageFranchise{Status: franchise.StatusInactive})
	require.NoError(t, err)

	later := first.AddDate(1, 0, 0)
	restore = franchise.SetNowFunc(func() time.Time { return later })
	defer restore()

	got, err = svc.Manage(ctx, f.ID, franchise.ManageFranchise{Status: franchise.StatusActive})
	require.NoError(t, err)
	require.NotNil(t, got.ActivationDate)
	assert.Equal(t, first, *got.ActivationDate, "activation date must never move")
	assert.Equal(t, first.AddDate(0, 0, 365), *got.ExpireDate)
}

func TestService_Manage_expiryFollowsPlan(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	restore := franchise.SetNowFunc(func() time.Time { return now })
	defer restore()

	for i, planDays := range franchise.PlanValidityChoices {
		planDays := planDays
		t.Run(fmt.Sprintf("%d days", planDays), func(t *testing.T) {
			svc, _, _ := setup(t)
			ctx := context.Background()

			f, err := svc.Create(ctx, franchise.NewFranchise{
				Name:             fmt.Sprintf("Plan Centre %d", planDays),
				Owner:            "Tara Singh",
				Designation:      "Owner",
				DateOfBirth:      "1987-04-04",
				Email:            fmt.Sprintf("plan%d@test.in", i),
				Mobile:           fmt.Sprintf("900000008%d", i),
				Address:          "5 Ring Rd",
				State:            "Punjab",
				City:             "Ludhiana",
				Pincode:          "141001",
				PlanValidityDays: planDays,
			})
			require.NoError(t, err)

			got, err := svc.Manage(ctx, f.ID, franchise.ManageFranchise{
				Status:             franchise.StatusActive,
				VerificationStatus: franchise.VerificationVerified,
			})
			require.NoError(t, err)
			require.NotNil(t, got.ExpireDate)
			assert.Equal(t, now.AddDate(0, 0, planDays), *got.ExpireDate)
		})
	}
}

func TestService_Manage_fallbackPasswordOnCompletion(t *testing.T) {
	svc, repo, mailSvc := setup(t)
	ctx := context.Background()

	f := testutil.CreateFranchise(t, repo, "Orchid Centre", "Leela Nair", "leela@test.in", "9000000035")

	// activation alone mints credentials but sends nothing
	got, err := svc.Manage(ctx, f.ID, franchise.ManageFranchise{Status: franchise.StatusActive})
	require.NoError(t, err)
	require.True(t, got.HasCredentials())
	require.Empty(t, mailSvc.SentMessages)
	prevHash := got.PasswordHash

	// verification completes the pair; the activated message must carry a
	// usable plaintext password even though none was minted in this call
	got, err = svc.Manage(ctx, f.ID, franchise.ManageFranchise{VerificationStatus: franchise.VerificationVerified})
	require.NoError(t, err)

	require.Len(t, mailSvc.SentMessages, 1)
	msg := mailSvc.SentMessages[0]
	assert.Equal(t, "franchise-activated", msg.TemplateName)

	data, ok := msg.TemplateData.(franchise.MailData)
	require.True(t, ok, "want franchise.MailData, got %T", msg.TemplateData)
	require.NotEmpty(t, data.Password)
	assert.Equal(t, got.FranchiseID, data.FranchiseID)

	// the mailed password matches the freshly persisted hash
	stored, err := repo.GetFranchiseByID(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(prevHash, stored.PasswordHash))
	assert.NoError(t, stored.CheckPassword(data.Password))
}

func TestService_Manage_notifications(t *testing.T) {
	tests := []struct {
		name      string
		prepare   []franchise.ManageFranchise
		manage    franchise.ManageFranchise
		wantTmpls []string
	}{
		{
			name:      "activation alone is silent while unverified",
			manage:    franchise.ManageFranchise{Status: franchise.StatusActive},
			wantTmpls: nil,
		},
		{
			name:      "verification alone is silent while pending",
			manage:    franchise.ManageFranchise{VerificationStatus: franchise.VerificationVerified},
			wantTmpls: nil,
		},
		{
			name:      "verifying an already active record completes the pair",
			prepare:   []franchise.ManageFranchise{{Status: franchise.StatusActive}},
			manage:    franchise.ManageFranchise{VerificationStatus: franchise.VerificationVerified},
			wantTmpls: []string{"franchise-activated"},
		},
		{
			name:      "rejection notifies once",
			manage:    franchise.ManageFranchise{Status: franchise.StatusRejected},
			wantTmpls: []string{"franchise-rejected"},
		},
		{
			name:      "re-rejection stays silent",
			prepare:   []franchise.ManageFranchise{{Status: franchise.StatusRejected}},
			manage:    franchise.ManageFranchise{Status: franchise.StatusRejected},
			wantTmpls: nil,
		},
		{
			name: "deactivating a live record notifies",
			prepare: []franchise.ManageFranchise{
				{Status: franchise.StatusActive, VerificationStatus: franchise.VerificationVerified},
			},
			manage:    franchise.ManageFranchise{Status: franchise.StatusInactive},
			wantTmpls: []string{"franchise-deactivated"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, mailSvc := setup(t)
			ctx := context.Background()

			f := testutil.CreateFranchise(t, repo, "Centre", "Owner X", "x@test.in", "9000000030")
			for _, mf := range tt.prepare {
				_, err := svc.Manage(ctx, f.ID, mf)
				require.NoError(t, err)
			}
			mailSvc.Reset()

			_, err := svc.Manage(ctx, f.ID, tt.manage)
			require.NoError(t, err)

			var gotTmpls []string
			for _, msg := range mailSvc.SentMessages {
				gotTmpls = append(gotTmpls, msg.TemplateName)
			}
			assert.Equal(t, tt.wantTmpls, gotTmpls)
		})
	}
}

func TestService_Manage_notFound(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Manage(context.Background(), "nope", franchise.ManageFranchise{Status: franchise.StatusActive})
	assert.Equal(t, franchise.ErrNotFound, errors.Cause(err))
}

func TestService_ResendCredentials(t *testing.T) {
	svc, repo, mailSvc := setup(t)
	ctx := context.Background()

	f := testutil.CreateFranchise(t, repo, "Lotus Centre", "Ravi Kumar", "ravi@test.in", "9000000040")

	got, err := svc.ResendCredentials(ctx, f.ID)
	require.NoError(t, err)
	assert.Regexp(t, fidRegexp, got.FranchiseID)
	assert.True(t, got.HasCredentials())

	require.Len(t, mailSvc.SentMessages, 1)
	assert.Equal(t, "franchise-credentials", mailSvc.SentMessages[0].TemplateName)

	// resending again rotates the stored hash
	prevHash := got.PasswordHash
	got, err = svc.ResendCredentials(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(prevHash, got.PasswordHash))
}

func TestService_ResendCredentials_deliveryFailure(t *testing.T) {
	svc, repo, mailSvc := setup(t)
	ctx := context.Background()

	f := testutil.CreateFranchise(t, repo, "Palm Centre", "Nisha Jain", "nisha@test.in", "9000000050")
	mailSvc.FailSend = errors.New("smtp down")

	got, err := svc.ResendCredentials(ctx, f.ID)
	require.Error(t, err)
	assert.Equal(t, franchise.ErrCredentialsEmailFailed, errors.Cause(err))

	// the new hash was committed before the failed dispatch
	stored, err2 := repo.GetFranchiseByID(ctx, f.ID)
	require.NoError(t, err2)
	assert.True(t, stored.HasCredentials())
	assert.Equal(t, got.PasswordHash, stored.PasswordHash)
}

func TestService_QueryLiveAndRequests(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	early := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)

	zebra := testutil.CreateFranchise(t, repo, "Zebra Centre", "A", "a@test.in", "9000000060", early)
	apple := testutil.CreateFranchise(t, repo, "Apple Centre", "B", "b@test.in", "9000000061", late)
	pending := testutil.CreateFranchise(t, repo, "Pending Centre", "C", "c@test.in", "9000000062", late.AddDate(0, 0, 1))

	for _, id := range []string{zebra.ID, apple.ID} {
		_, err := svc.Manage(ctx, id, franchise.ManageFranchise{
			Status:             franchise.StatusActive,
			VerificationStatus: franchise.VerificationVerified,
		})
		require.NoError(t, err)
	}

	live, err := svc.QueryLive(ctx)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "Apple Centre", live[0].Name) // name ascending
	assert.Equal(t, "Zebra Centre", live[1].Name)

	requests, err := svc.QueryRequests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, pending.ID, requests[0].ID)
}
