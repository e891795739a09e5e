package actor

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/hanchu2mqtt/internal/core/domain"
	"github.com/berfenger/hanchu2mqtt/internal/util/actorutil"
	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func spawnTestCloudActor(t *testing.T) (*actor.ActorSystem, *actor.RootContext, *actor.PID) {
	inv, err := hanchu.CreateTestInverterReader()
	if err != nil {
		t.Fatal(err)
	}
	batt, err := hanchu.CreateTestBatteryReader()
	if err != nil {
		t.Fatal(err)
	}
	wm, err := hanchu.CreateTestWorkModeController()
	if err != nil {
		t.Fatal(err)
	}

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	info := hanchu.DevicesInfo{
		InverterSerial: "HESI30TEST001",
		BatterySerial:  "HESB10TEST001",
		HasBattery:     true,
	}

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(inv, batt, wm, info, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	return as, context, pid
}

func TestGetDevicesInfoCloudActor(t *testing.T) {

	assert := assert.New(t)

	as, context, pid := spawnTestCloudActor(t)

	result, err := context.RequestFuture(pid, domain.GetDevicesInfoRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetDevicesInfoResponse)

	assert.Equal(resp.Info.InverterSerial, "HESI30TEST001", "Inverter serial")
	assert.Equal(resp.Info.BatterySerial, "HESB10TEST001", "Battery serial")
	assert.True(resp.Info.HasBattery, "Has battery")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetInverterReadingCloudActor(t *testing.T) {

	assert := assert.New(t)

	as, context, pid := spawnTestCloudActor(t)

	result, err := context.RequestFuture(pid, domain.GetInverterReadingRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetInverterReadingResponse)

	assert.False(resp.HasResponseError())
	assert.NotNil(resp.Reading)
	assert.Equal(resp.Reading.SerialNumber, "HESI30TEST001", "reading serial")
	assert.True(*resp.Reading.SolarPowerW > 0, "solar power bounds")
	assert.True(*resp.Reading.BatteryPowerW < 0, "battery charging sign")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetBatteryReadingCloudActor(t *testing.T) {

	assert := assert.New(t)

	as, context, pid := spawnTestCloudActor(t)

	result, err := context.RequestFuture(pid, domain.GetBatteryReadingRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetBatteryReadingResponse)

	assert.False(resp.HasResponseError())
	assert.NotNil(resp.Reading)
	assert.Equal(resp.Reading.SerialNumber, "HESB10TEST001", "reading serial")
	assert.True(*resp.Reading.SocPct >= 0 && *resp.Reading.SocPct <= 100, "soc bounds")

	context.Stop(pid)

	as.Shutdown()
}

func TestSetWorkModeCloudActor(t *testing.T) {

	assert := assert.New(t)

	as, context, pid := spawnTestCloudActor(t)

	result, err := context.RequestFuture(pid, domain.SetWorkModeRequest{Mode: hanchu.WorkModeOffGrid}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.SetWorkModeResponse)

	assert.False(resp.HasResponseError())
	assert.Equal(resp.Mode, hanchu.WorkModeOffGrid, "acked mode")

	context.Stop(pid)

	as.Shutdown()
}

type slowBatteryReader struct {
	delay time.Duration
}

func (r slowBatteryReader) FetchBatteryReading(ctx context.Context) (*hanchu.BatteryReading, error) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return hanchu.TestBatteryReader{}.FetchBatteryReading(ctx)
}

func TestSlowBatteryDoesNotDelayInverterCloudActor(t *testing.T) {

	assert := assert.New(t)

	inv, _ := hanchu.CreateTestInverterReader()
	wm, _ := hanchu.CreateTestWorkModeController()
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	info := hanchu.DevicesInfo{
		InverterSerial: "HESI30TEST001",
		BatterySerial:  "HESB10TEST001",
		HasBattery:     true,
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewCloudActor(inv, slowBatteryReader{delay: 4 * time.Second}, wm, info, logger)
	})
	pid := context.Spawn(props)

	batteryFuture := context.RequestFuture(pid, domain.GetBatteryReadingRequest{}, 15*time.Second)
	time.Sleep(100 * time.Millisecond)

	// the inverter fetch must complete while the battery fetch is in flight
	start := time.Now()
	result, err := context.RequestFuture(pid, domain.GetInverterReadingRequest{}, 15*time.Second).Result()
	elapsed := time.Since(start)
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetInverterReadingResponse)
	assert.False(resp.HasResponseError())
	assert.NotNil(resp.Reading)
	assert.Less(elapsed, 1*time.Second, "inverter fetch held back by battery fetch")

	result, err = batteryFuture.Result()
	if err != nil {
		t.Error(err)
		return
	}
	battResp := result.(domain.GetBatteryReadingResponse)
	assert.False(battResp.HasResponseError())
	assert.NotNil(battResp.Reading)

	context.Stop(pid)

	as.Shutdown()
}

type blockedBatteryReader struct {
	aborted chan struct{}
}

func (r blockedBatteryReader) FetchBatteryReading(ctx context.Context) (*hanchu.BatteryReading, error) {
	<-ctx.Done()
	close(r.aborted)
	return nil, ctx.Err()
}

func TestStopAbortsInFlightCallCloudActor(t *testing.T) {

	inv, _ := hanchu.CreateTestInverterReader()
	wm, _ := hanchu.CreateTestWorkModeController()
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	info := hanchu.DevicesInfo{
		InverterSerial: "HESI30TEST001",
		BatterySerial:  "HESB10TEST001",
		HasBattery:     true,
	}

	reader := blockedBatteryReader{aborted: make(chan struct{})}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewCloudActor(inv, reader, wm, info, logger)
	})
	pid := context.Spawn(props)

	context.Send(pid, domain.GetBatteryReadingRequest{})
	time.Sleep(200 * time.Millisecond)

	context.Stop(pid)

	// stopping the actor cancels the call context long before its timeout
	select {
	case <-reader.aborted:
	case <-time.After(2 * time.Second):
		t.Error("in-flight cloud call not aborted on stop")
	}

	as.Shutdown()
}

func TestGetEnergyFlowCloudActor(t *testing.T) {

	assert := assert.New(t)

	as, context, pid := spawnTestCloudActor(t)

	result, err := context.RequestFuture(pid, domain.GetEnergyFlowRequest{Date: "2025-06-01"}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetEnergyFlowResponse)

	assert.False(resp.HasResponseError())
	assert.NotNil(resp.Flow)
	assert.Equal(resp.Flow.Date, "2025-06-01", "flow date")
	assert.NotNil(resp.Flow.SolarKWh)

	context.Stop(pid)

	as.Shutdown()
}
