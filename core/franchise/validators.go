package franchise

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/skedutech/portal/core"
)

var (
	// custom validation tags & texts
	statusTag  = "franchisestatus"
	statusText = "invalid status"

	verificationTag  = "verificationstatus"
	verificationText = "invalid verification status"

	planValidityTag  = "planvalidity"
	planValidityText = fmt.Sprintf("plan validity must be one of %v days", PlanValidityChoices)

	statusOrVerificationTag  = "status_or_verification"
	statusOrVerificationText = "one of status or verificationStatus is required"
)

// InitValidators registers the franchise custom validators and their
// translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(verificationTag, verificationValidation)
	core.RegisterCustomTranslation(validate, translator, verificationTag, verificationText)

	_ = validate.RegisterValidation(planValidityTag, planValidityValidation)
	core.RegisterCustomTranslation(validate, translator, planValidityTag, planValidityText)

	validate.RegisterStructValidation(manageStructValidation, ManageFranchise{})
	core.RegisterCustomTranslation(validate, translator, statusOrVerificationTag, statusOrVerificationText)
}

// Custom Validators

// statusValidation checks that the provided value is a member of AllStatuses.
func statusValidation(fl validator.FieldLevel) bool {
	val := Status(fl.Field().String())
	for _, s := range AllStatuses {
		if val == s {
			return true
		}
	}
	return false
}

// verificationValidation checks that the provided value is a member of
// AllVerificationStatuses.
func verificationValidation(fl validator.FieldLevel) bool {
	val := VerificationStatus(fl.Field().String())
	for _, s := range AllVerificationStatuses {
		if val == s {
			return true
		}
	}
	return false
}

// planValidityValidation checks that the provided interval is a member of
// PlanValidityChoices.
func planValidityValidation(fl validator.FieldLevel) bool {
	val := int(fl.Field().Int())
	for _, days := range PlanValidityChoices {
		if val == days {
			return true
		}
	}
	return false
}

// manageStructValidation checks that a lifecycle transition request carries
// at least one field.
func manageStructValidation(sl validator.StructLevel) {
	mf, ok := sl.Current().Interface().(ManageFranchise)
	if !ok {
		return
	}
	if mf.Status == "" && mf.VerificationStatus == "" {
		sl.ReportError(mf.Status, "status", "Status", statusOrVerificationTag, "")
		sl.ReportError(mf.VerificationStatus, "verificationStatus", "VerificationStatus", statusOrVerificationTag, "")
	}
}
