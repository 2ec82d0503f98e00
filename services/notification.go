package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/models"
)

// Notifier delivers best-effort side effects of core operations. Callers never
// see delivery failures.
type Notifier interface {
	NotifyInvitation(ctx context.Context, inv *models.Invitation)
	NotifyExpenseAdded(ctx context.Context, g *models.Group, e *models.Expense)
	NotifyProofSubmitted(ctx context.Context, g *models.Group, memberID string)
}

type PushMessage struct {
	Token string
	Title string
	Body  string
	Link  string
	Data  map[string]string
}

type PushSender interface {
	Send(ctx context.Context, msg PushMessage) error
}

type Email struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

const notificationTimeout = 10 * time.Second

type NotificationService struct {
	users   database.UserStore
	push    PushSender
	mailer  Mailer
	appName string
	appURL  string
	async   bool
}

// NewNotificationService wires the delivery channels. push and mailer may be
// nil when their credentials are not configured.
func NewNotificationService(users database.UserStore, push PushSender, mailer Mailer, appName, appURL string) *NotificationService {
	return &NotificationService{
		users:   users,
		push:    push,
		mailer:  mailer,
		appName: appName,
		appURL:  appURL,
		async:   true,
	}
}

// dispatch runs fn detached from the request so a slow provider never delays
// the response.
func (ns *NotificationService) dispatch(fn func(ctx context.Context)) {
	if !ns.async {
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()
		fn(ctx)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (ns *NotificationService) link(path string) string {
	return ns.appURL + path
}

func (ns *NotificationService) sendPush(ctx context.Context, user *models.User, title, body, link string, data map[string]string) {
	if ns.push == nil || user.FCMToken == "" {
		return
	}
	err := ns.push.Send(ctx, PushMessage{Token: user.FCMToken, Title: title, Body: body, Link: link, Data: data})
	if err != nil {
		notificationsSent.WithLabelValues("push", "error").Inc()
		logger.GetLogger().Warnw("Push notification failed", "userID", user.ID, "token", logger.MaskToken(user.FCMToken), "error", err)
		return
	}
	notificationsSent.WithLabelValues("push", "sent").Inc()
}

func (ns *NotificationService) sendEmail(ctx context.Context, e Email) {
	if ns.mailer == nil || e.ToEmail == "" {
		return
	}
	if err := ns.mailer.Send(ctx, e); err != nil {
		notificationsSent.WithLabelValues("email", "error").Inc()
		logger.GetLogger().Warnw("Email notification failed", "to", logger.MaskEmail(e.ToEmail), "error", err)
		return
	}
	notificationsSent.WithLabelValues("email", "sent").Inc()
}

func (ns *NotificationService) lookup(ctx context.Context, userID string) *models.User {
	u, err := ns.users.GetUser(ctx, userID)
	if err != nil {
		logger.GetLogger().Debugw("Notification recipient not found", "userID", userID, "error", err)
		return nil
	}
	return u
}

func (ns *NotificationService) NotifyInvitation(_ context.Context, inv *models.Invitation) {
	invitation := *inv
	ns.dispatch(func(ctx context.Context) {
		user := ns.lookup(ctx, invitation.ToUID)
		if user == nil {
			return
		}
		link := ns.link("/invitations")
		ns.sendPush(ctx, user,
			fmt.Sprintf("Invitación a %s", invitation.GroupName),
			fmt.Sprintf("%s te invitó a unirte a \"%s\".", invitation.FromName, invitation.GroupName),
			link,
			map[string]string{"type": "invitation", "invitationId": invitation.ID, "groupId": invitation.GroupID},
		)

		html, err := renderInvitationEmail(invitationEmailData{
			AppName:   ns.appName,
			FromName:  invitation.FromName,
			GroupName: invitation.GroupName,
			Link:      link,
		})
		if err != nil {
			logger.GetLogger().Errorw("Failed to render invitation email", "error", err)
			return
		}
		ns.sendEmail(ctx, Email{
			ToEmail:   user.Email,
			ToName:    user.DisplayName,
			Subject:   fmt.Sprintf("%s te invitó a \"%s\" en %s", invitation.FromName, invitation.GroupName, ns.appName),
			PlainText: fmt.Sprintf("%s te invitó a unirte a \"%s\". Respondé en %s", invitation.FromName, invitation.GroupName, link),
			HTML:      html,
		})
	})
}

func (ns *NotificationService) NotifyExpenseAdded(_ context.Context, g *models.Group, e *models.Expense) {
	group := g.Clone()
	expense := *e
	ns.dispatch(func(ctx context.Context) {
		for _, m := range group.Members {
			if m.ID == expense.PayerID {
				continue
			}
			user := ns.lookup(ctx, m.ID)
			if user == nil {
				continue
			}
			ns.sendPush(ctx, user,
				fmt.Sprintf("Nuevo gasto en %s", group.Name),
				fmt.Sprintf("%s: $%s. Tu parte ahora es $%s.", expense.Description, expense.Amount.StringFixed(2), group.ShareAmount().StringFixed(2)),
				ns.link("/group/"+group.ID),
				map[string]string{"type": "expense_added", "groupId": group.ID, "expenseId": expense.ID},
			)
		}
	})
}

func (ns *NotificationService) NotifyProofSubmitted(_ context.Context, g *models.Group, memberID string) {
	group := g.Clone()
	ns.dispatch(func(ctx context.Context) {
		member := group.Member(memberID)
		if member == nil {
			return
		}
		admin := ns.lookup(ctx, group.AdminID())
		if admin == nil {
			return
		}
		ns.sendPush(ctx, admin,
			"Comprobante para revisar",
			fmt.Sprintf("%s subió su comprobante en \"%s\".", member.Name, group.Name),
			ns.link("/group/"+group.ID),
			map[string]string{"type": "proof_submitted", "groupId": group.ID, "memberId": memberID},
		)
	})
}

// ============================================================
// EMAIL via SendGrid
// ============================================================

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, e Email) error {
	message := mail.NewSingleEmail(m.from, e.Subject, mail.NewEmail(e.ToName, e.ToEmail), e.PlainText, e.HTML)
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

// ============================================================
// EMAIL TEMPLATES
// ============================================================

type invitationEmailData struct {
	AppName   string
	FromName  string
	GroupName string
	Link      string
}

var invitationEmailTemplate = template.Must(template.New("invitation").Parse(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #0f766e; margin-top: 0;">Te invitaron a un grupo</h2>
		<p><strong>{{.FromName}}</strong> te invitó a unirte a <strong>"{{.GroupName}}"</strong> en {{.AppName}}.</p>
		<div style="margin: 24px 0;">
			<a href="{{.Link}}" style="background: #0f766e; color: white; padding: 12px 32px; border-radius: 8px; text-decoration: none; font-weight: bold;">Ver invitación</a>
		</div>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">{{.AppName}}</p>
	</div>
</body>
</html>`))

func renderInvitationEmail(data invitationEmailData) (string, error) {
	var buf bytes.Buffer
	if err := invitationEmailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
