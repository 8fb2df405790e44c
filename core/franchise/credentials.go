package franchise

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	idLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"

	passwordLen = 8

	// maxIDAttempts bounds the generate-and-check loop before falling back
	// to a wider digit space. The store's unique index remains the
	// authoritative guard against the check/insert race.
	maxIDAttempts = 10

	nowFunc = time.Now // mockable
)

// generateFranchiseID produces a candidate franchise identifier of the fixed
// form <2 uppercase letters><numDigits digits>.
func generateFranchiseID(numDigits int) (string, error) {
	var sb strings.Builder
	for i := 0; i < 2; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idLetters))))
		if err != nil {
			return "", errors.Wrap(err, "generating franchise id letters")
		}
		sb.WriteByte(idLetters[n.Int64()])
	}
	for i := 0; i < numDigits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", errors.Wrap(err, "generating franchise id digits")
		}
		sb.WriteByte(digits[n.Int64()])
	}
	return sb.String(), nil
}

// generatePassword produces an 8-digit numeric one-time password.
func generatePassword() (string, error) {
	var sb strings.Builder
	for i := 0; i < passwordLen; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", errors.Wrap(err, "generating password")
		}
		sb.WriteByte(digits[n.Int64()])
	}
	return sb.String(), nil
}

// mintFranchiseID returns an identifier that does not collide with any stored
// one at the instant of check. After maxIDAttempts collisions the digit space
// widens by two; the loop itself is only a best-effort pre-check.
func (svc *service) mintFranchiseID(ctx context.Context) (string, error) {
	numDigits := svc.idDigits
	for attempt := 1; ; attempt++ {
		fid, err := generateFranchiseID(numDigits)
		if err != nil {
			return "", err
		}
		exists, err := svc.repo.FranchiseIDExists(ctx, fid)
		if err != nil {
			return "", errors.Wrap(err, "checking franchise id uniqueness")
		}
		if !exists {
			return fid, nil
		}
		if attempt%maxIDAttempts == 0 {
			numDigits += 2
		}
	}
}
