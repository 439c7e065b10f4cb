package queuesvc

import (
	"fmt"
	"sync"

	"github.com/tchimanga/darasa/core"
)

type consoleService struct {
	logger core.Logger
}

var _ core.QueueService = (*consoleService)(nil)

func NewConsoleService(logger core.Logger) core.QueueService {
	return &consoleService{logger: logger}
}

func (svc consoleService) PublishSubmissionCreated(event core.SubmissionEvent) {
	svc.logger.Info(fmt.Sprintf("submission created: %s (attempt %d)", event.SubmissionID, event.AttemptNumber))
}

// ServiceMock records published events for inspection.
type ServiceMock struct {
	mu     sync.Mutex
	events []core.SubmissionEvent
}

var _ core.QueueService = (*ServiceMock)(nil)

func NewServiceMock() *ServiceMock {
	return &ServiceMock{}
}

func (svc *ServiceMock) PublishSubmissionCreated(event core.SubmissionEvent) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.events = append(svc.events, event)
}

func (svc *ServiceMock) Events() []core.SubmissionEvent {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	events := make([]core.SubmissionEvent, len(svc.events))
	copy(events, svc.events)
	return events
}
