package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/hanchu2mqtt/internal/config"
	"github.com/berfenger/hanchu2mqtt/internal/core/domain"
	"github.com/berfenger/hanchu2mqtt/internal/core/events"
	. "github.com/berfenger/hanchu2mqtt/internal/util/actorutil"
	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// BatteryPollerActor mirrors the inverter poller on its own cadence. It is
// only spawned when a battery serial is configured.
type BatteryPollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	cloudActor  *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	interval    time.Duration
	threshold   uint

	reading       *hanchu.BatteryReading
	lastUpdated   time.Time
	available     bool
	gotFirstPoll  bool
	failures      uint
	authGraceUsed bool

	logger *zap.Logger
}

type batteryPollTick struct {
}

func NewBatteryPollerActor(config *config.Config, cloudActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *BatteryPollerActor {
	act := &BatteryPollerActor{
		config:      config,
		cloudActor:  cloudActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_BATTERY_POLL, logger),
		eventStream: eventStream,
		interval:    time.Duration(config.MonitorConfig.BatteryPollIntervalSeconds) * time.Second,
		threshold:   config.MonitorConfig.AvailabilityThreshold,
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *BatteryPollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BatteryPollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("batterypoll@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		ctx.Send(ctx.Self(), batteryPollTick{})
	case domain.ActorHealthRequest:
		state.logger.Debug("batterypoll@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BATTERY_POLL,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetBatterySnapshotRequest:
		state.respondSnapshot(ctx, msg)
	case batteryPollTick:
		state.logger.Debug("batterypoll@default tick")
		state.startPoll(ctx, true)
	case domain.PollNowRequest:
		state.logger.Debug("batterypoll@default PollNowRequest")
		state.startPoll(ctx, false)
	default:
		state.logger.Debug("batterypoll@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BatteryPollerActor) WaitingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetBatteryReadingResponse:
		state.handleResult(ctx, msg)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case batteryPollTick:
		// poll still in flight, skip this cycle
		state.logger.Debug("batterypoll@waiting tick skipped")
		state.scheduler.RequestOnce(state.interval, ctx.Self(), batteryPollTick{})
	case domain.PollNowRequest:
		state.logger.Debug("batterypoll@waiting PollNowRequest dropped")
	case domain.GetBatterySnapshotRequest:
		state.respondSnapshot(ctx, msg)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BATTERY_POLL,
			Healthy: true,
			State:   "polling",
		})
	default:
		state.logger.Debug("batterypoll@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BatteryPollerActor) startPoll(ctx actor.Context, scheduleNext bool) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetBatteryReadingRequest{}, 40*time.Second), func(err error) any {
		return domain.GetBatteryReadingResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	if scheduleNext {
		state.scheduler.RequestOnce(state.interval, ctx.Self(), batteryPollTick{})
	}
	state.behavior.BecomeStacked(state.WaitingReceive)
}

func (state *BatteryPollerActor) handleResult(ctx actor.Context, msg domain.GetBatteryReadingResponse) {
	if msg.HasResponseError() {
		state.pollFailed(msg.GetResponseError())
		return
	}
	if msg.Reading == nil {
		state.pollFailed(errors.New("empty battery reading"))
		return
	}
	state.logger.Debug("batterypoll@waiting reading received")
	state.reading = msg.Reading
	state.lastUpdated = time.Now()
	state.failures = 0
	state.authGraceUsed = false

	becameAvailable := !state.available || !state.gotFirstPoll
	state.available = true
	state.gotFirstPoll = true

	for _, ev := range events.BatteryReadingToUpdateEvents(msg.Reading) {
		state.eventStream.Publish(ev)
	}
	if becameAvailable {
		state.eventStream.Publish(events.BatteryAvailabilityUpdateEvent(true))
	}
}

func (state *BatteryPollerActor) pollFailed(err error) {
	var authErr *hanchu.AuthError
	if errors.As(err, &authErr) && !state.authGraceUsed {
		// a session can expire at any time, one re-login cycle is not a failure
		state.logger.Warn("batterypoll@waiting auth error, will retry next cycle", zap.Error(err))
		state.authGraceUsed = true
		return
	}
	state.failures++
	state.logger.Error("batterypoll@waiting poll failed", zap.Error(err), zap.Uint("failures", state.failures))
	if state.failures >= state.threshold && (state.available || !state.gotFirstPoll) {
		state.available = false
		state.gotFirstPoll = true
		state.eventStream.Publish(events.BatteryAvailabilityUpdateEvent(false))
	}
}

func (state *BatteryPollerActor) respondSnapshot(ctx actor.Context, msg domain.GetBatterySnapshotRequest) {
	state.logger.Debug("batterypoll GetBatterySnapshotRequest")
	ForRequest(msg).Respond(ctx, domain.GetBatterySnapshotResponse{
		Reading:     state.reading,
		Available:   state.available,
		LastUpdated: state.lastUpdated,
	})
}
