package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
)

// InvitationEmail is the message sent to someone invited to a project.
type InvitationEmail struct {
	To          string `json:"to"`
	ProjectName string `json:"projectName"`
	InviterName string `json:"inviterName"`
	Role        string `json:"role"`
	InviteLink  string `json:"inviteLink"`
}

func (m InvitationEmail) Subject() string {
	return fmt.Sprintf("%s invited you to join %q on ProjectFlow", m.InviterName, m.ProjectName)
}

// RFC2822 renders the message with headers stripped of line breaks.
func (m InvitationEmail) RFC2822() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(m.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(m.Subject()))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	fmt.Fprintf(&b, "<p>%s invited you to join <strong>%s</strong> as %s.</p>\r\n",
		html.EscapeString(m.InviterName), html.EscapeString(m.ProjectName), html.EscapeString(m.Role))
	fmt.Fprintf(&b, "<p><a href=\"%s\">Accept the invitation</a></p>\r\n", html.EscapeString(m.InviteLink))
	return []byte(b.String())
}

func headerValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

type Gmail struct {
	f   *Factory
	svc *gmail.Service
}

func (f *Factory) Gmail(ctx context.Context, tok *oauth2.Token) (*Gmail, error) {
	svc, err := gmail.NewService(ctx, f.clientOptions(tok)...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail client: %w", err)
	}
	return &Gmail{f: f, svc: svc}, nil
}

func (g *Gmail) Send(ctx context.Context, raw []byte) (string, error) {
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	return call(ctx, g.f, ServiceGmail, func(ctx context.Context) (string, error) {
		sent, err := g.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		return sent.Id, nil
	})
}

// SendInvitation delivers msg from the account that owns tok.
func (f *Factory) SendInvitation(ctx context.Context, tok *oauth2.Token, msg InvitationEmail) error {
	g, err := f.Gmail(ctx, tok)
	if err != nil {
		return err
	}
	id, err := g.Send(ctx, msg.RFC2822())
	if err != nil {
		return err
	}
	f.logger.Info("invitation email sent", "to", msg.To, "message_id", id)
	return nil
}
