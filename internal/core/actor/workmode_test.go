package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	adactor "github.com/berfenger/hanchu2mqtt/internal/adapter/actor"
	"github.com/berfenger/hanchu2mqtt/internal/core/domain"
	"github.com/berfenger/hanchu2mqtt/internal/util"
	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
)

func TestWorkModeSetCommand(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logger := testLogger(t)

	es := &eventstream.EventStream{}
	col := &collector{}
	col.subscribe(es)

	cloudPID := spawnCloudActor(t, context, hanchu.TestInverterReader{}, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewWorkModeActor(&cfg, cloudPID, nil, es, logger)
	})
	pid, err := context.SpawnNamed(props, "workmode")
	assert.NoError(t, err)

	res, err := context.RequestFuture(pid, domain.SetWorkModeCommandRequest{
		Mode: hanchu.WorkModeBackupPower,
	}, 5*time.Second).Result()
	assert.NoError(t, err)
	resp, ok := res.(domain.SetWorkModeCommandResponse)
	assert.True(t, ok)
	assert.False(t, resp.HasResponseError())
	assert.Equal(t, hanchu.WorkModeBackupPower, resp.Mode)

	// the accepted mode is reflected on the event stream
	time.Sleep(200 * time.Millisecond)
	evs := col.byId(domain.SELECT_ID_WORK_MODE)
	assert.NotEmpty(t, evs)
	assert.Equal(t, hanchu.WorkModeBackupPower.String(), evs[len(evs)-1].(domain.SelectSensorUpdateEvent).Value)

	// last known mode is kept
	res, err = context.RequestFuture(pid, domain.GetWorkModeCommandRequest{}, 5*time.Second).Result()
	assert.NoError(t, err)
	getResp, ok := res.(domain.GetWorkModeCommandResponse)
	assert.True(t, ok)
	if assert.NotNil(t, getResp.Mode) {
		assert.Equal(t, hanchu.WorkModeBackupPower, *getResp.Mode)
	}

	context.Stop(pid)
	as.Shutdown()
}

// inverter reader whose readings reflect the last mode accepted by the
// work mode controller, like the real cloud does one poll later
type modeEchoingCloud struct {
	mu   sync.Mutex
	mode hanchu.WorkMode
}

func (c *modeEchoingCloud) SetWorkMode(_ context.Context, mode hanchu.WorkMode) error {
	if !mode.Valid() {
		return &hanchu.RejectedByDeviceError{Msg: "invalid work mode"}
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	return nil
}

func (c *modeEchoingCloud) FetchInverterReading(_ context.Context) (*hanchu.InverterReading, error) {
	reading, err := hanchu.TestInverterReader{}.FetchInverterReading(context.Background())
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()
	reading.WorkMode = &mode
	return reading, nil
}

func (c *modeEchoingCloud) FetchEnergyFlow(_ context.Context, date string) (*hanchu.EnergyFlowReading, error) {
	return hanchu.TestInverterReader{}.FetchEnergyFlow(context.Background(), date)
}

func TestWorkModeAckTriggersImmediatePoll(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	// long interval so the only polls are the initial one and the nudged one
	cfg.MonitorConfig.InverterPollIntervalSeconds = 60
	logger := testLogger(t)

	es := &eventstream.EventStream{}
	col := &collector{}
	col.subscribe(es)

	cloud := &modeEchoingCloud{mode: hanchu.WorkModeSelfConsumption}
	battery, _ := hanchu.CreateTestBatteryReader()
	cloudProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewCloudActor(cloud, battery, cloud, hanchu.DevicesInfo{
			InverterSerial: "HESI30TEST001",
		}, logger)
	})
	cloudPID, err := context.SpawnNamed(cloudProps, "cloud_"+t.Name())
	assert.NoError(t, err)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewInverterPollerActor(&cfg, cloudPID, es, logger)
	})
	pollerPID, err := context.SpawnNamed(pollerProps, "inverter_poll")
	assert.NoError(t, err)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewWorkModeActor(&cfg, cloudPID, pollerPID, es, logger)
	})
	pid, err := context.SpawnNamed(props, "workmode")
	assert.NoError(t, err)

	time.Sleep(1 * time.Second)

	res, err := context.RequestFuture(pid, domain.SetWorkModeCommandRequest{
		Mode: hanchu.WorkModeBackupPower,
	}, 5*time.Second).Result()
	assert.NoError(t, err)
	resp, ok := res.(domain.SetWorkModeCommandResponse)
	assert.True(t, ok)
	assert.False(t, resp.HasResponseError())

	time.Sleep(1 * time.Second)

	// a second poll ran right after the ack, well before the 60s tick
	assert.GreaterOrEqual(t, len(col.byId(domain.SENSOR_ID_SOLAR_POWER)), 2)

	// the refreshed reading carries the acked mode
	res, err = context.RequestFuture(pollerPID, domain.GetInverterSnapshotRequest{}, 5*time.Second).Result()
	assert.NoError(t, err)
	snap, ok := res.(domain.GetInverterSnapshotResponse)
	assert.True(t, ok)
	if assert.NotNil(t, snap.Reading) && assert.NotNil(t, snap.Reading.WorkMode) {
		assert.Equal(t, hanchu.WorkModeBackupPower, *snap.Reading.WorkMode)
	}
	evs := col.byId(domain.SELECT_ID_WORK_MODE)
	assert.NotEmpty(t, evs)
	assert.Equal(t, hanchu.WorkModeBackupPower.String(), evs[len(evs)-1].(domain.SelectSensorUpdateEvent).Value)

	context.Stop(pid)
	context.Stop(pollerPID)
	as.Shutdown()
}

type orderedWorkModeController struct {
	mu    sync.Mutex
	delay time.Duration
	calls []hanchu.WorkMode
}

func (c *orderedWorkModeController) SetWorkMode(_ context.Context, mode hanchu.WorkMode) error {
	c.mu.Lock()
	c.calls = append(c.calls, mode)
	c.mu.Unlock()
	time.Sleep(c.delay)
	return nil
}

func (c *orderedWorkModeController) ordered() []hanchu.WorkMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]hanchu.WorkMode, len(c.calls))
	copy(out, c.calls)
	return out
}

func TestWorkModeBackToBackCommands(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logger := testLogger(t)

	es := &eventstream.EventStream{}

	ctrl := &orderedWorkModeController{delay: 500 * time.Millisecond}
	battery, _ := hanchu.CreateTestBatteryReader()
	cloudProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewCloudActor(hanchu.TestInverterReader{}, battery, ctrl, hanchu.DevicesInfo{
			InverterSerial: "HESI30TEST001",
		}, logger)
	})
	cloudPID, err := context.SpawnNamed(cloudProps, "cloud_"+t.Name())
	assert.NoError(t, err)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewWorkModeActor(&cfg, cloudPID, nil, es, logger)
	})
	pid, err := context.SpawnNamed(props, "workmode")
	assert.NoError(t, err)

	// second command lands while the first is awaiting its ack
	first := context.RequestFuture(pid, domain.SetWorkModeCommandRequest{
		Mode: hanchu.WorkModeOffGrid,
	}, 5*time.Second)
	second := context.RequestFuture(pid, domain.SetWorkModeCommandRequest{
		Mode: hanchu.WorkModeBackupPower,
	}, 5*time.Second)

	res, err := first.Result()
	assert.NoError(t, err)
	resp, ok := res.(domain.SetWorkModeCommandResponse)
	assert.True(t, ok)
	assert.False(t, resp.HasResponseError())
	assert.Equal(t, hanchu.WorkModeOffGrid, resp.Mode)

	res, err = second.Result()
	assert.NoError(t, err)
	resp, ok = res.(domain.SetWorkModeCommandResponse)
	assert.True(t, ok)
	assert.False(t, resp.HasResponseError())
	assert.Equal(t, hanchu.WorkModeBackupPower, resp.Mode)

	// one command in flight at a time, in arrival order
	assert.Equal(t, []hanchu.WorkMode{hanchu.WorkModeOffGrid, hanchu.WorkModeBackupPower}, ctrl.ordered())

	// the last acked mode wins
	res, err = context.RequestFuture(pid, domain.GetWorkModeCommandRequest{}, 5*time.Second).Result()
	assert.NoError(t, err)
	getResp, ok := res.(domain.GetWorkModeCommandResponse)
	assert.True(t, ok)
	if assert.NotNil(t, getResp.Mode) {
		assert.Equal(t, hanchu.WorkModeBackupPower, *getResp.Mode)
	}

	context.Stop(pid)
	as.Shutdown()
}

func TestWorkModeInvalidCommand(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logger := testLogger(t)

	es := &eventstream.EventStream{}

	cloudPID := spawnCloudActor(t, context, hanchu.TestInverterReader{}, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewWorkModeActor(&cfg, cloudPID, nil, es, logger)
	})
	pid, err := context.SpawnNamed(props, "workmode")
	assert.NoError(t, err)

	res, err := context.RequestFuture(pid, domain.SetWorkModeCommandRequest{
		Mode: hanchu.WorkMode(9),
	}, 5*time.Second).Result()
	assert.NoError(t, err)
	resp, ok := res.(domain.SetWorkModeCommandResponse)
	assert.True(t, ok)
	assert.True(t, resp.HasResponseError())

	context.Stop(pid)
	as.Shutdown()
}
