package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParticipantTransition_StampsJoinedAtOnce(t *testing.T) {
	p := &Participant{UserID: uuid.New(), Status: ParticipantRinging}
	first := time.Now()

	changed := p.Transition(ParticipantJoined, first)

	assert.True(t, changed)
	assert.Equal(t, ParticipantJoined, p.Status)
	assert.NotNil(t, p.JoinedAt)
	assert.Equal(t, first, *p.JoinedAt)

	// Re-applying the same transition is a no-op
	changed = p.Transition(ParticipantJoined, first.Add(time.Minute))
	assert.False(t, changed)
	assert.Equal(t, first, *p.JoinedAt)
}

func TestParticipantTransition_Monotonic(t *testing.T) {
	p := &Participant{UserID: uuid.New(), Status: ParticipantJoined}

	// No transition back to the ringing phase
	changed := p.Transition(ParticipantRinging, time.Now())
	assert.False(t, changed)
	assert.Equal(t, ParticipantJoined, p.Status)
}

func TestParticipantTransition_DepartedStatusesDoNotOverwrite(t *testing.T) {
	p := &Participant{UserID: uuid.New(), Status: ParticipantRinging}
	now := time.Now()

	assert.True(t, p.Transition(ParticipantRejected, now))
	assert.Equal(t, now, *p.LeftAt)

	assert.False(t, p.Transition(ParticipantLeft, now.Add(time.Second)))
	assert.Equal(t, ParticipantRejected, p.Status)
	assert.Equal(t, now, *p.LeftAt)
}

func TestParticipantReinvite(t *testing.T) {
	p := &Participant{UserID: uuid.New(), Status: ParticipantLeft}

	assert.True(t, p.Reinvite())
	assert.Equal(t, ParticipantRinging, p.Status)

	// Live participants are untouched
	q := &Participant{UserID: uuid.New(), Status: ParticipantJoined}
	assert.False(t, q.Reinvite())
	assert.Equal(t, ParticipantJoined, q.Status)
}

func TestCallSession_Counts(t *testing.T) {
	session := &CallSession{
		Participants: []Participant{
			{UserID: uuid.New(), Status: ParticipantCalling},
			{UserID: uuid.New(), Status: ParticipantRinging},
			{UserID: uuid.New(), Status: ParticipantJoined},
			{UserID: uuid.New(), Status: ParticipantLeft},
			{UserID: uuid.New(), Status: ParticipantRejected},
		},
	}

	assert.Equal(t, 1, session.JoinedCount())
	assert.Equal(t, 3, session.LiveCount())
	assert.Len(t, session.ParticipantIDs(), 5)
}

func TestCallSession_End(t *testing.T) {
	connected := time.Now().Add(-222 * time.Second)
	session := &CallSession{
		Status:      CallStatusActive,
		ConnectedAt: &connected,
	}
	endAt := connected.Add(222 * time.Second)

	assert.True(t, session.End(CallStatusEnded, endAt))
	assert.Equal(t, CallStatusEnded, session.Status)
	assert.Equal(t, endAt, *session.EndedAt)
	assert.Equal(t, 222, session.Duration)

	// Terminal states are final
	assert.False(t, session.End(CallStatusCancelled, endAt.Add(time.Minute)))
	assert.Equal(t, CallStatusEnded, session.Status)
}

func TestCallSession_End_NeverConnected(t *testing.T) {
	session := &CallSession{Status: CallStatusPending}

	assert.True(t, session.End(CallStatusCancelled, time.Now()))
	assert.Equal(t, 0, session.Duration)
	assert.Nil(t, session.ConnectedAt)
}

func TestCallSession_ParticipantLookup(t *testing.T) {
	userID := uuid.New()
	session := &CallSession{
		Participants: []Participant{{UserID: userID, Status: ParticipantRinging}},
	}

	p := session.Participant(userID)
	assert.NotNil(t, p)

	// Returned pointer aliases the slice entry
	p.Status = ParticipantJoined
	assert.Equal(t, ParticipantJoined, session.Participants[0].Status)

	assert.Nil(t, session.Participant(uuid.New()))
}
