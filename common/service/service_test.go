package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testService struct {
	BaseBackgroundService

	startErr error
	log      *[]string
}

func (s *testService) Start() error {
	*s.log = append(*s.log, "start "+s.Name())
	return s.startErr
}

func (s *testService) Stop() {
	*s.log = append(*s.log, "stop "+s.Name())
}

func newTestService(name string, log *[]string, startErr error) *testService {
	return &testService{
		BaseBackgroundService: *NewBaseBackgroundService(name),
		startErr:              startErr,
		log:                   log,
	}
}

func TestGroup(t *testing.T) {
	require := require.New(t)

	var log []string
	g := NewGroup("test/group")
	g.Register(newTestService("a", &log, nil))
	g.Register(newTestService("b", &log, nil))

	require.NoError(g.Start())
	g.Stop()
	require.Equal([]string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestGroupStartFailure(t *testing.T) {
	require := require.New(t)

	var log []string
	g := NewGroup("test/group")
	g.Register(newTestService("a", &log, nil))
	g.Register(newTestService("b", &log, errors.New("boom")))
	g.Register(newTestService("c", &log, nil))

	require.Error(g.Start())
	require.Equal([]string{"start a", "start b", "stop a"}, log)
}

func TestGroupWait(t *testing.T) {
	require := require.New(t)

	svc := NewBaseBackgroundService("test/wait")
	g := NewGroup("test/group")
	g.Register(svc)

	done := make(chan struct{})
	go func() {
		g.Wait(context.Background())
		close(done)
	}()

	svc.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail("Wait should return once a service quits")
	}
}
