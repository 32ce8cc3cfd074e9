package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ab0utbla-k/awshealth2dynatrace/internal/metrics"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/notify"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/transform"
)

const openEvent = `{
	"id": "e-open",
	"account": "123456789012",
	"region": "eu-central-1",
	"resources": [],
	"detail": {
		"service": "EC2",
		"eventTypeCode": "AWS_EC2_OPERATIONAL_ISSUE",
		"eventTypeCategory": "issue",
		"startTime": "Mon, 04 Apr 2022 10:56:31 GMT",
		"eventDescription": [{"language": "en_US", "latestDescription": "API errors"}],
		"affectedEntities": [{"entityValue": "i-1"}, {"entityValue": "i-2"}]
	}
}`

const closedEvent = `{
	"id": "e-closed",
	"account": "123456789012",
	"detail": {
		"service": "EC2",
		"eventTypeCategory": "issue",
		"startTime": "Mon, 04 Apr 2022 10:56:31 GMT",
		"endTime": "Mon, 04 Apr 2022 12:56:31 GMT",
		"eventDescription": []
	}
}`

const unmappedEvent = `{
	"id": "e-unmapped",
	"detail": {"eventTypeCategory": "investigation", "eventDescription": []}
}`

type fixture struct {
	sender   *SenderMock
	notifier *NotifierMock
	recorder *RecorderMock
}

func setupHandler(t *testing.T, opts ...Option) (*fixture, *EventHandler) {
	t.Helper()

	f := &fixture{
		sender:   new(SenderMock),
		notifier: new(NotifierMock),
		recorder: new(RecorderMock),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts = append([]Option{WithNotifier(f.notifier), WithRecorder(f.recorder)}, opts...)
	h := NewEventHandler(transform.NewTransformer(logger), f.sender, logger, opts...)

	t.Cleanup(func() {
		f.sender.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
		f.recorder.AssertExpectations(t)
	})

	return f, h
}

func TestHandleRequest_Sends(t *testing.T) {
	f, h := setupHandler(t)

	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(e *transform.TargetEvent) bool {
		return e.EventType == transform.EventTypeAvailability &&
			e.EntitySelector == `type("EC2_INSTANCE"),arn("arn:aws:ec2:eu-central-1:123456789012:instance/i-1",`+
				`"arn:aws:ec2:eu-central-1:123456789012:instance/i-2")` &&
			e.StartTime != nil && e.EndTime == nil
	})).Return(nil).Once()
	f.recorder.On("Record", mock.Anything, metrics.OutcomeForwarded, "AVAILABILITY_EVENT").Return(nil).Once()

	got, err := h.HandleRequest(context.Background(), json.RawMessage(openEvent))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHandleRequest_SkipsClosedEvent(t *testing.T) {
	f, h := setupHandler(t)

	f.recorder.On("Record", mock.Anything, metrics.OutcomeSkipped, "AVAILABILITY_EVENT").Return(nil).Once()

	got, err := h.HandleRequest(context.Background(), json.RawMessage(closedEvent))
	require.NoError(t, err)
	assert.Nil(t, got)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleRequest_DryRun(t *testing.T) {
	f, h := setupHandler(t, WithDryRun(true))

	f.recorder.On("Record", mock.Anything, metrics.OutcomeDryRun, "AVAILABILITY_EVENT").Return(nil).Once()

	got, err := h.HandleRequest(context.Background(), json.RawMessage(openEvent))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, transform.EventTypeAvailability, got.EventType)
	assert.Equal(t, "awsHealthEvent", got.Properties["_type"])
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleRequest_UnmappedCategoryIsDropped(t *testing.T) {
	f, h := setupHandler(t)

	f.recorder.On("Record", mock.Anything, metrics.OutcomeFailed, "").Return(nil).Once()

	got, err := h.HandleRequest(context.Background(), json.RawMessage(unmappedEvent))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHandleRequest_MalformedIsDropped(t *testing.T) {
	f, h := setupHandler(t)

	f.recorder.On("Record", mock.Anything, metrics.OutcomeFailed, "").Return(nil).Once()

	got, err := h.HandleRequest(context.Background(), json.RawMessage(`{"id": "e-bad"}`))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHandleRequest_SendFailure(t *testing.T) {
	f, h := setupHandler(t)
	expectedError := errors.New("dynatrace unavailable")

	f.sender.On("Send", mock.Anything, mock.Anything).Return(expectedError).Once()
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n *notify.Failure) bool {
		return n.EventID == "e-open" &&
			n.EventTypeCode == "AWS_EC2_OPERATIONAL_ISSUE" &&
			errors.Is(n.Err, expectedError) &&
			n.Event != nil
	})).Return(nil).Once()
	f.recorder.On("Record", mock.Anything, metrics.OutcomeFailed, "AVAILABILITY_EVENT").Return(nil).Once()

	got, err := h.HandleRequest(context.Background(), json.RawMessage(openEvent))
	require.Error(t, err)
	assert.ErrorIs(t, err, expectedError)
	assert.Nil(t, got)
}

func TestHandleRequest_NotifierAndRecorderErrorsAreNotFatal(t *testing.T) {
	f, h := setupHandler(t)
	expectedError := errors.New("dynatrace unavailable")

	f.sender.On("Send", mock.Anything, mock.Anything).Return(expectedError).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("sns down")).Once()
	f.recorder.On("Record", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("cw down")).Once()

	_, err := h.HandleRequest(context.Background(), json.RawMessage(openEvent))
	assert.ErrorIs(t, err, expectedError)
}

func TestHandleRequest_WithoutOptionalCollaborators(t *testing.T) {
	sender := new(SenderMock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewEventHandler(transform.NewTransformer(logger), sender, logger)
	expectedError := errors.New("dynatrace unavailable")

	sender.On("Send", mock.Anything, mock.Anything).Return(expectedError).Once()

	_, err := h.HandleRequest(context.Background(), json.RawMessage(openEvent))
	assert.ErrorIs(t, err, expectedError)
	sender.AssertExpectations(t)
}

func TestPeekEventID(t *testing.T) {
	assert.Equal(t, "e1", peekEventID([]byte(`{"id": "e1", "detail": 5}`)))
	assert.Empty(t, peekEventID([]byte(`{`)))
}
