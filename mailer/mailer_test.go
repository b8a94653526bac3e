package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karvelis/authflow"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Port: 587, From: "noreply@x.com"})
	assert.Error(t, err)

	_, err = New(Config{Host: "smtp.x.com", From: "noreply@x.com"})
	assert.Error(t, err)

	_, err = New(Config{Host: "smtp.x.com", Port: 587})
	assert.Error(t, err)

	s, err := New(Config{Host: "smtp.x.com", Port: 587, From: "noreply@x.com"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSendCodeHonorsCancelledContext(t *testing.T) {
	s, err := New(Config{Host: "smtp.x.com", Port: 587, From: "noreply@x.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.SendCode(ctx, "a@x.com", "123456", authflow.CodeKindSignUp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendCodeRejectsUnknownKind(t *testing.T) {
	s, err := New(Config{Host: "smtp.x.com", Port: 587, From: "noreply@x.com"})
	require.NoError(t, err)

	err = s.SendCode(context.Background(), "a@x.com", "123456", authflow.CodeKind("telepathy"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown code kind")
}

func TestTemplatesCoverAllKinds(t *testing.T) {
	kinds := []authflow.CodeKind{
		authflow.CodeKindSignUp,
		authflow.CodeKindLogin2FA,
		authflow.CodeKindPasswordReset,
		authflow.CodeKindEmailChange,
	}
	for _, kind := range kinds {
		tpl, ok := templates[kind]
		require.True(t, ok, "missing template for %q", kind)
		assert.NotEmpty(t, tpl.subject)
		assert.True(t, strings.Contains(tpl.body, "%s"), "body for %q has no code slot", kind)
	}
}
