package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketflow/internal/model"
)

type published struct {
	body  []byte
	delay int
}

type fakeQueue struct {
	mu        sync.Mutex
	published []published
	pubErr    error
	deliver   [][]byte
}

func (q *fakeQueue) Publish(message []byte, delaySeconds int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pubErr != nil {
		return q.pubErr
	}
	q.published = append(q.published, published{body: message, delay: delaySeconds})
	return nil
}

func (q *fakeQueue) Consume(_ context.Context, handler func([]byte) error) error {
	for _, b := range q.deliver {
		_ = handler(b)
	}
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []model.Confirmation
	err  error
}

func (s *fakeSender) SendConfirmation(c model.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, c)
	return nil
}

func encode(t *testing.T, c model.Confirmation) []byte {
	t.Helper()
	b, err := json.Marshal(c)
	require.NoError(t, err)
	return b
}

func TestReader_Handle_Sends(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeSender{}
	r := NewReader(q, s, 3)

	require.NoError(t, r.Handle(encode(t, model.Confirmation{ReferenceID: "r-1", To: "a@b.co"})))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "r-1", s.sent[0].ReferenceID)
	assert.Empty(t, q.published)
}

func TestReader_Handle_RetriesWithDelay(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeSender{err: errors.New("smtp down")}
	r := NewReader(q, s, 3)

	require.NoError(t, r.Handle(encode(t, model.Confirmation{ReferenceID: "r-1", Attempt: 1})))
	require.Len(t, q.published, 1)
	assert.Equal(t, 60, q.published[0].delay)

	var next model.Confirmation
	require.NoError(t, json.Unmarshal(q.published[0].body, &next))
	assert.Equal(t, 2, next.Attempt)
}

func TestReader_Handle_GivesUp(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeSender{err: errors.New("smtp down")}
	r := NewReader(q, s, 3)

	require.NoError(t, r.Handle(encode(t, model.Confirmation{ReferenceID: "r-1", Attempt: 2})))
	assert.Empty(t, q.published)
}

func TestReader_Handle_RequeuesWhenRepublishFails(t *testing.T) {
	q := &fakeQueue{pubErr: errors.New("channel closed")}
	s := &fakeSender{err: errors.New("smtp down")}
	r := NewReader(q, s, 5)

	assert.Error(t, r.Handle(encode(t, model.Confirmation{ReferenceID: "r-1"})))
}

func TestReader_Handle_DropsMalformed(t *testing.T) {
	s := &fakeSender{}
	r := NewReader(&fakeQueue{}, s, 3)

	assert.NoError(t, r.Handle([]byte("{not json")))
	assert.Empty(t, s.sent)
}

func TestReader_StartStop(t *testing.T) {
	q := &fakeQueue{deliver: [][]byte{[]byte(`{"reference_id":"r-7","to":"x@y.co"}`)}}
	s := &fakeSender{}
	r := NewReader(q, s, 3)

	r.Start(context.Background())
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.sent) == 1
	}, time.Second, 10*time.Millisecond)
	r.Stop()
}
