package session

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esnunes/codewizard/internal/models"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestSetName(t *testing.T) {
	rejected := []string{"", " ", "A", "  a  ", "\t\n", "é"}
	for _, name := range rejected {
		t.Run("reject "+name, func(t *testing.T) {
			s := New("id", t0)
			err := s.SetName(name)
			assert.ErrorIs(t, err, ErrNameTooShort)
			assert.Equal(t, Unauthenticated, s.State())
			assert.Empty(t, s.UserName)
		})
	}

	accepted := []struct{ in, want string }{
		{"Al", "Al"},
		{"  Al  ", "Al"},
		{"Grace Hopper", "Grace Hopper"},
		{"éé", "éé"},
	}
	for _, tt := range accepted {
		t.Run("accept "+tt.in, func(t *testing.T) {
			s := New("id", t0)
			require.NoError(t, s.SetName(tt.in))
			assert.Equal(t, Active, s.State())
			assert.Equal(t, tt.want, s.UserName)
		})
	}
}

func TestSetName_OnlyOnce(t *testing.T) {
	s := New("id", t0)
	require.NoError(t, s.SetName("Al"))

	err := s.SetName("Bob")
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, "Al", s.UserName)
}

func populated(t *testing.T) *Session {
	t.Helper()
	s := New("id", t0)
	require.NoError(t, s.SetName("Al"))
	s.Mode = models.ModeGeneral
	s.Code = &models.CodeSubmission{Code: "print(1)", SubmittedAt: t0}
	s.CodeSubmitted = true
	s.Append(
		models.Message{Role: models.RoleUser, Content: "Please analyze this code."},
		models.Message{Role: models.RoleAssistant, Content: "This prints 1."},
	)
	s.CodeAnalyses = 1
	s.QuestionsAsked = 2
	return s
}

func TestReset_KeepsIdentity(t *testing.T) {
	s := populated(t)

	s.Reset()

	assert.Empty(t, s.Messages)
	assert.Empty(t, s.History)
	assert.Nil(t, s.Code)
	assert.False(t, s.CodeSubmitted)

	assert.Equal(t, "Al", s.UserName)
	assert.Equal(t, Active, s.State())
	assert.Equal(t, models.ModeGeneral, s.Mode)
	assert.Equal(t, 1, s.CodeAnalyses)
	assert.Equal(t, 2, s.QuestionsAsked)
}

func TestEnd_ClearsEverything(t *testing.T) {
	s := populated(t)
	s.AddFlash(FlashSuccess, "hi")
	later := t0.Add(time.Hour)

	s.End(later)

	assert.Equal(t, Unauthenticated, s.State())
	assert.Empty(t, s.UserName)
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.History)
	assert.Nil(t, s.Code)
	assert.False(t, s.CodeSubmitted)
	assert.Zero(t, s.CodeAnalyses)
	assert.Zero(t, s.QuestionsAsked)
	assert.Equal(t, models.ModeCode, s.Mode)
	assert.Equal(t, later, s.StartedAt)
	assert.Empty(t, s.TakeFlashes())
}

func TestRecentContext(t *testing.T) {
	s := New("id", t0)
	assert.Nil(t, s.RecentContext(3))

	for _, c := range []string{"a", "b", "c", "d", "e"} {
		s.Append(models.Message{Role: models.RoleUser, Content: c})
	}

	got := s.RecentContext(3)
	want := []models.Message{
		{Role: models.RoleUser, Content: "c"},
		{Role: models.RoleUser, Content: "d"},
		{Role: models.RoleUser, Content: "e"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RecentContext(3) mismatch (-want +got):\n%s", diff)
	}

	// the result is a copy
	got[0].Content = "mutated"
	assert.Equal(t, "c", s.History[2].Content)

	assert.Len(t, s.RecentContext(10), 5)
	assert.Nil(t, s.RecentContext(0))
}

func TestStats(t *testing.T) {
	s := populated(t)

	st := s.Stats(t0.Add(7*time.Minute + 40*time.Second))

	assert.Equal(t, models.Stats{
		UserName:        "Al",
		DurationMinutes: 7,
		QuestionsAsked:  2,
		CodeAnalyses:    1,
		SessionStart:    t0,
		HistoryLength:   2,
	}, st)
}

func TestFlashes(t *testing.T) {
	s := New("id", t0)
	s.AddFlash(FlashWarning, "careful")
	s.AddFlash(FlashError, "boom")

	got := s.TakeFlashes()
	assert.Equal(t, []Flash{{FlashWarning, "careful"}, {FlashError, "boom"}}, got)
	assert.Empty(t, s.TakeFlashes())
}
