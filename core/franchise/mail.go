package franchise

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/skedutech/portal/core"
)

const mailDateFormat = "02 Jan 2006"

// MailData is the template payload of every franchise notification; the
// plaintext password is set only on messages that carry credentials.
type MailData struct {
	Name           string
	Owner          string
	FranchiseID    string
	Password       string
	PlanDays       int
	ActivationDate string
	ExpireDate     string
}

func formatMailDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(mailDateFormat)
}

func (f Franchise) mailData(plainPwd string) MailData {
	return MailData{
		Name:           f.Name,
		Owner:          f.Owner,
		FranchiseID:    f.FranchiseID,
		Password:       plainPwd,
		PlanDays:       f.PlanValidityDays,
		ActivationDate: formatMailDate(f.ActivationDate),
		ExpireDate:     formatMailDate(f.ExpireDate),
	}
}

func (f Franchise) mailAddress() mail.Address {
	return mail.Address{Name: f.Owner, Address: f.Email}
}

// activationMail carries the portal credentials; the plaintext password only
// ever exists inside this message.
func (svc *service) activationMail(f Franchise, plainPwd string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{f.mailAddress()},
		Subject:      fmt.Sprintf("Franchise %s is now active", f.FranchiseID),
		TemplateName: "franchise-activated",
		TemplateData: f.mailData(plainPwd),
	}
}

func (svc *service) rejectionMail(f Franchise) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{f.mailAddress()},
		Subject:      "Franchise application rejected",
		TemplateName: "franchise-rejected",
		TemplateData: f.mailData(""),
	}
}

func (svc *service) deactivationMail(f Franchise) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{f.mailAddress()},
		Subject:      fmt.Sprintf("Franchise %s deactivated", f.FranchiseID),
		TemplateName: "franchise-deactivated",
		TemplateData: f.mailData(""),
	}
}

func (svc *service) credentialsMail(f Franchise, plainPwd string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{f.mailAddress()},
		Subject:      "Your franchise portal credentials",
		TemplateName: "franchise-credentials",
		TemplateData: f.mailData(plainPwd),
	}
}
