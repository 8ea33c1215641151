// Package feedback relays user feedback to the support inbox through
// Amazon SES.
package feedback

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "paskoocheh.feedback")

var (
	ErrValidation = errors.New("feedback: invalid argument")
	ErrSend       = errors.New("feedback: send failed")
)

// SESAPI is the slice of the SES client the mailer calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Mailer struct {
	ses    SESAPI
	source string
}

// New builds a mailer sending from the given verified source address.
func New(ses SESAPI, source string) *Mailer {
	return &Mailer{ses: ses, source: source}
}

// NewFromConfig wires the mailer to a real SES client.
func NewFromConfig(cfg aws.Config, source string) *Mailer {
	return New(sesv2.NewFromConfig(cfg), source)
}

// Send emails body to the recipient and returns the SES message id.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) (string, error) {

	switch {
	case !strings.Contains(to, "@"):
		return "", errors.Wrapf(ErrValidation, "recipient %q", to)
	case strings.TrimSpace(subject) == "":
		return "", errors.Wrap(ErrValidation, "empty subject")
	case strings.TrimSpace(body) == "":
		return "", errors.Wrap(ErrValidation, "empty body")
	}

	out, err := m.ses.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.source),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return "", errors.Wrapf(ErrSend, "%v", err)
	}

	id := aws.ToString(out.MessageId)
	logger.WithField("message_id", id).Debug("feedback sent")
	return id, nil
}
