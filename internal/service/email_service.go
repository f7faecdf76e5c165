package service

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"learnhub/internal/logger"
)

// Mailer sends the emails triggered by learning milestones
type Mailer interface {
	SendCertificateEmail(ctx context.Context, toEmail, toName, trackTitle, certificateID string) error
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	log        *logger.Logger
}

// NewEmailService creates a new email service. An empty fromEmail yields a
// disabled service that logs and skips every send.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, log *logger.Logger) (*EmailService, error) {
	if fromEmail == "" {
		log.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, log: log}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("Email service enabled", "from", fromEmail, "region", awsRegion)
	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		log:        log,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

const emailLayout = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #2f6f4f; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #2f6f4f; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header"><h1>%s</h1></div>
		<div class="content">%s</div>
		<div class="footer"><p>This is an automated email from LearnHub. Please do not reply.</p></div>
	</div>
</body>
</html>
`

// SendCertificateEmail congratulates a learner on finishing a track
func (s *EmailService) SendCertificateEmail(ctx context.Context, toEmail, toName, trackTitle, certificateID string) error {
	if !s.enabled || toEmail == "" {
		s.log.Debug("Skipping certificate email", "to", toEmail, "enabled", s.enabled)
		return nil
	}

	link := fmt.Sprintf("%s/certificates/%s", s.appBaseURL, certificateID)
	subject := fmt.Sprintf("You completed %s!", trackTitle)
	content := fmt.Sprintf(`
			<p>Hi %s,</p>
			<p>Congratulations on completing <strong>%s</strong>.</p>
			<p>Your certificate ID is <code>%s</code>.</p>
			<p style="text-align: center;"><a href="%s" class="button">View Certificate</a></p>`,
		html.EscapeString(toName), html.EscapeString(trackTitle), certificateID, link)
	htmlBody := fmt.Sprintf(emailLayout, "Track Completed", content)

	textBody := fmt.Sprintf(`Hi %s,

Congratulations on completing %s.

Your certificate ID is %s.
View it at: %s

---
This is an automated email from LearnHub. Please do not reply.
`, toName, trackTitle, certificateID, link)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendWelcomeEmail greets a newly created user
func (s *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	if !s.enabled || toEmail == "" {
		s.log.Debug("Skipping welcome email", "to", toEmail, "enabled", s.enabled)
		return nil
	}

	content := fmt.Sprintf(`
			<p>Hi %s,</p>
			<p>Welcome to LearnHub! Pick a track, complete lessons to earn experience, and keep your streak going.</p>
			<p style="text-align: center;"><a href="%s/tracks" class="button">Browse Tracks</a></p>`,
		html.EscapeString(toName), s.appBaseURL)
	htmlBody := fmt.Sprintf(emailLayout, "Welcome to LearnHub!", content)

	textBody := fmt.Sprintf(`Hi %s,

Welcome to LearnHub! Pick a track, complete lessons to earn experience, and keep your streak going.

Browse tracks: %s/tracks

---
This is an automated email from LearnHub. Please do not reply.
`, toName, s.appBaseURL)

	return s.sendEmail(ctx, toEmail, "Welcome to LearnHub!", htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	s.log.Info("Email sent", "to", toEmail, "subject", subject, "message_id", aws.ToString(result.MessageId))
	return nil
}
