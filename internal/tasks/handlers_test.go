package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/internal/testutil"
	"github.com/hugh/projectflow/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeMailer struct {
	calls []google.InvitationEmail
	token *oauth2.Token
	err   error
}

func (m *fakeMailer) SendInvitation(_ context.Context, tok *oauth2.Token, msg google.InvitationEmail) error {
	m.calls = append(m.calls, msg)
	m.token = tok
	return m.err
}

func testMessage() google.InvitationEmail {
	return google.InvitationEmail{
		To:          "bob@example.com",
		ProjectName: "Launch",
		InviterName: "Alice",
		Role:        "member",
		InviteLink:  "http://localhost:5000/invite/inv-1",
	}
}

func TestInvitationTask_SealsToken(t *testing.T) {
	enc := testutil.NewTestEncryptor(t)
	e := NewEnqueuer(nil, enc, util.NopLogger())

	task, err := e.invitationTask("inv-1", &oauth2.Token{AccessToken: "secret-access"}, testMessage())
	require.NoError(t, err)
	assert.Equal(t, TypeInvitationEmail, task.Type())
	assert.NotContains(t, string(task.Payload()), "secret-access")

	var payload InvitationEmailPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "inv-1", payload.InvitationID)
	assert.Equal(t, "bob@example.com", payload.Message.To)
}

func TestHandleInvitationEmail_Delivers(t *testing.T) {
	enc := testutil.NewTestEncryptor(t)
	mailer := &fakeMailer{}
	h := NewHandler(mailer, enc, util.NopLogger())

	e := NewEnqueuer(nil, enc, util.NopLogger())
	task, err := e.invitationTask("inv-1", &oauth2.Token{
		AccessToken: "access",
		Expiry:      time.Now().Add(time.Hour),
	}, testMessage())
	require.NoError(t, err)

	require.NoError(t, h.HandleInvitationEmail(context.Background(), task))
	require.Len(t, mailer.calls, 1)
	assert.Equal(t, "Launch", mailer.calls[0].ProjectName)
	assert.Equal(t, "access", mailer.token.AccessToken)
}

func TestHandleInvitationEmail_InvalidPayload(t *testing.T) {
	h := NewHandler(&fakeMailer{}, testutil.NewTestEncryptor(t), util.NopLogger())

	err := h.HandleInvitationEmail(context.Background(), asynq.NewTask(TypeInvitationEmail, []byte("invalid json")))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleInvitationEmail_ExpiredTokenIsDropped(t *testing.T) {
	enc := testutil.NewTestEncryptor(t)
	mailer := &fakeMailer{}
	h := NewHandler(mailer, enc, util.NopLogger())

	e := NewEnqueuer(nil, enc, util.NopLogger())
	task, err := e.invitationTask("", &oauth2.Token{
		AccessToken: "access",
		Expiry:      time.Now().Add(-time.Minute),
	}, testMessage())
	require.NoError(t, err)

	err = h.HandleInvitationEmail(context.Background(), task)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, mailer.calls)
}

func TestHandleInvitationEmail_RetriesUpstreamFailures(t *testing.T) {
	enc := testutil.NewTestEncryptor(t)
	mailer := &fakeMailer{err: apperr.Upstream("gmail", errors.New("503"))}
	h := NewHandler(mailer, enc, util.NopLogger())

	e := NewEnqueuer(nil, enc, util.NopLogger())
	task, err := e.invitationTask("", &oauth2.Token{AccessToken: "access"}, testMessage())
	require.NoError(t, err)

	err = h.HandleInvitationEmail(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}
