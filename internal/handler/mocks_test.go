package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ab0utbla-k/awshealth2dynatrace/internal/metrics"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/notify"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/transform"
)

// SenderMock is a mock implementation of the Sender interface.
type SenderMock struct {
	mock.Mock
}

func (m *SenderMock) Send(ctx context.Context, event *transform.TargetEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// NotifierMock is a mock implementation of the Notifier interface.
type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(ctx context.Context, f *notify.Failure) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

// RecorderMock is a mock implementation of the metrics.Recorder interface.
type RecorderMock struct {
	mock.Mock
}

func (m *RecorderMock) Record(ctx context.Context, outcome metrics.Outcome, eventType string) error {
	args := m.Called(ctx, outcome, eventType)
	return args.Error(0)
}
