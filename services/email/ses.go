package emailsvc

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/pkg/errors"

	"github.com/skedutech/portal/core"
)

const sesCharset = "UTF-8"

type sesService struct {
	client     *ses.Client
	from       string
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sesService)(nil)

func NewSESService(ctx context.Context, conf *core.Config, logger core.Logger) (*sesService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.AwsRegion))
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	from := conf.DefaultFromEmail()
	return &sesService{
		client:     ses.NewFromConfig(cfg),
		from:       from.String(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}, nil
}

func (svc *sesService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.SendMessage(msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
			}
		}()
	}
}

func (svc *sesService) SendMessage(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}

	subject := svc.subjPrefix + msg.Subject
	body := &types.Body{
		Text: &types.Content{Charset: aws.String(sesCharset), Data: aws.String(msg.TextContent)},
	}
	if msg.HTMLContent != "" {
		body.Html = &types.Content{Charset: aws.String(sesCharset), Data: aws.String(msg.HTMLContent)}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(svc.from),
		Destination: &types.Destination{
			ToAddresses:  formatAddresses(msg.To),
			CcAddresses:  formatAddresses(msg.Cc),
			BccAddresses: formatAddresses(msg.Bcc),
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String(sesCharset), Data: aws.String(subject)},
			Body:    body,
		},
	}

	if _, err := svc.client.SendEmail(context.Background(), input); err != nil {
		return errors.Wrap(err, "sending email")
	}
	return nil
}

func formatAddresses(addrs []mail.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}
