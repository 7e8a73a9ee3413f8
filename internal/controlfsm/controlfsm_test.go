package controlfsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	commands []Command
	fail     bool
}

func (f *fakePublisher) PublishCommand(c Command) error {
	if f.fail {
		return assert.AnError
	}
	f.commands = append(f.commands, c)
	return nil
}

func readyExperiment(t *testing.T, pub Publisher) *Experiment {
	t.Helper()
	e := NewExperiment(pub, 3)
	require.Equal(t, ExpInit, e.State())
	e.OnParticipantOnline()
	e.OnParticipantOnline()
	e.OnParticipantOnline()
	require.Equal(t, ExpReady, e.State())
	return e
}

func TestExperimentFullRunCycle(t *testing.T) {
	pub := &fakePublisher{}
	e := readyExperiment(t, pub)

	require.NoError(t, e.HandleStartRun(Calibration))
	assert.Equal(t, ExpStartingRun, e.State())
	assert.Equal(t, Calibration, e.ActiveRunType())

	e.OnDaqoniteRunning()
	assert.Equal(t, ExpRun, e.State())

	require.NoError(t, e.HandleStopRun())
	assert.Equal(t, ExpStoppingRun, e.State())

	e.OnDaqoniteReady()
	assert.Equal(t, ExpReady, e.State())

	require.Len(t, pub.commands, 2)
	assert.Equal(t, OpStartRun, pub.commands[0].Code)
	assert.Equal(t, OpStopRun, pub.commands[1].Code)
}

func TestExperimentRejectsStartRunOutsideReady(t *testing.T) {
	pub := &fakePublisher{}
	e := NewExperiment(pub, 1)
	assert.Error(t, e.HandleStartRun(DataNormal))
	assert.Equal(t, ExpInit, e.State())
}

func TestExperimentPublishFailureDoesNotTransition(t *testing.T) {
	pub := &fakePublisher{fail: true}
	e := readyExperiment(t, pub)
	assert.Error(t, e.HandleStartRun(DataNormal))
	assert.Equal(t, ExpReady, e.State())
}

func TestExperimentParticipantAnomalyEntersError(t *testing.T) {
	pub := &fakePublisher{}
	e := readyExperiment(t, pub)
	e.OnParticipantAnomalous("daqontrol", assert.AnError)
	assert.Equal(t, ExpError, e.State())
	assert.Error(t, e.HandleStartRun(DataNormal))
}

func TestDaqoniteObserverLegalCycle(t *testing.T) {
	pub := &fakePublisher{}
	e := NewExperiment(pub, 1)
	o := NewDaqoniteObserver(e)

	require.NoError(t, o.OnStateMessage(StateMessage{State: byte(DaqoniteUnknown)}))
	require.NoError(t, o.OnStateMessage(StateMessage{State: byte(DaqoniteReady)}))
	assert.Equal(t, ExpReady, e.State())

	require.NoError(t, o.OnStateMessage(StateMessage{State: byte(DaqoniteRunning), HasRunType: true, RunType: TestFlasher}))
	assert.Equal(t, DaqoniteRunning, o.State())
}

func TestDaqoniteObserverRejectsIllegalJump(t *testing.T) {
	e := NewExperiment(&fakePublisher{}, 1)
	o := NewDaqoniteObserver(e)
	err := o.OnStateMessage(StateMessage{State: byte(DaqoniteRunning)})
	assert.Error(t, err)
}

func TestDaqoniteObserverDisconnectReturnsToOffline(t *testing.T) {
	e := NewExperiment(&fakePublisher{}, 1)
	o := NewDaqoniteObserver(e)
	require.NoError(t, o.OnStateMessage(StateMessage{State: byte(DaqoniteUnknown)}))
	o.Disconnected()
	assert.Equal(t, DaqoniteOffline, o.State())
}

func TestCommandEncodeDecodeRoundtrip(t *testing.T) {
	cases := []Command{
		{Code: OpConfig, Path: "/etc/daqonite/run.json"},
		{Code: OpStartData},
		{Code: OpStopData},
		{Code: OpStartRun, RunType: Calibration},
		{Code: OpStopRun},
		{Code: OpExit},
	}
	for _, c := range cases {
		decoded, err := DecodeCommand(c.Encode())
		require.NoError(t, err)
		assert.Equal(t, c, decoded)
	}
}

func TestStateMessageEncodeDecodeRoundtrip(t *testing.T) {
	m := StateMessage{State: byte(DaqoniteRunning), HasRunType: true, RunType: TestNormal}
	decoded, err := DecodeStateMessage(m.Encode())
	require.NoError(t, err)
	assert.Equal(t, m, decoded)

	m2 := StateMessage{State: byte(DaqontrolReady)}
	decoded2, err := DecodeStateMessage(m2.Encode())
	require.NoError(t, err)
	assert.Equal(t, m2, decoded2)
}
