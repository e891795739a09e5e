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

// InverterPollerActor drives the inverter poll cycle and keeps the last
// normalized reading. While a poll is in flight, new ticks are dropped
// instead of queued, so a slow cloud cannot build up a request backlog.
type InverterPollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	cloudActor  *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	interval    time.Duration
	threshold   uint

	reading       *hanchu.InverterReading
	lastUpdated   time.Time
	available     bool
	gotFirstPoll  bool
	failures      uint
	authGraceUsed bool

	logger *zap.Logger
}

type inverterPollTick struct {
}

func NewInverterPollerActor(config *config.Config, cloudActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *InverterPollerActor {
	act := &InverterPollerActor{
		config:      config,
		cloudActor:  cloudActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_INVERTER_POLL, logger),
		eventStream: eventStream,
		interval:    time.Duration(config.MonitorConfig.InverterPollIntervalSeconds) * time.Second,
		threshold:   config.MonitorConfig.AvailabilityThreshold,
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *InverterPollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *InverterPollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("inverterpoll@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		ctx.Send(ctx.Self(), inverterPollTick{})
	case domain.ActorHealthRequest:
		state.logger.Debug("inverterpoll@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER_POLL,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetInverterSnapshotRequest:
		state.respondSnapshot(ctx, msg)
	case inverterPollTick:
		state.logger.Debug("inverterpoll@default tick")
		state.startPoll(ctx, true)
	case domain.PollNowRequest:
		state.logger.Debug("inverterpoll@default PollNowRequest")
		state.startPoll(ctx, false)
	default:
		state.logger.Debug("inverterpoll@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterPollerActor) WaitingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetInverterReadingResponse:
		state.handleResult(ctx, msg)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case inverterPollTick:
		// poll still in flight, skip this cycle
		state.logger.Debug("inverterpoll@waiting tick skipped")
		state.scheduler.RequestOnce(state.interval, ctx.Self(), inverterPollTick{})
	case domain.PollNowRequest:
		state.logger.Debug("inverterpoll@waiting PollNowRequest dropped")
	case domain.GetInverterSnapshotRequest:
		state.respondSnapshot(ctx, msg)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER_POLL,
			Healthy: true,
			State:   "polling",
		})
	default:
		state.logger.Debug("inverterpoll@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterPollerActor) startPoll(ctx actor.Context, scheduleNext bool) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetInverterReadingRequest{}, 40*time.Second), func(err error) any {
		return domain.GetInverterReadingResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	if scheduleNext {
		state.scheduler.RequestOnce(state.interval, ctx.Self(), inverterPollTick{})
	}
	state.behavior.BecomeStacked(state.WaitingReceive)
}

func (state *InverterPollerActor) handleResult(ctx actor.Context, msg domain.GetInverterReadingResponse) {
	if msg.HasResponseError() {
		state.pollFailed(msg.GetResponseError())
		return
	}
	if msg.Reading == nil {
		state.pollFailed(errors.New("empty inverter reading"))
		return
	}
	state.logger.Debug("inverterpoll@waiting reading received")
	state.reading = msg.Reading
	state.lastUpdated = time.Now()
	state.failures = 0
	state.authGraceUsed = false

	becameAvailable := !state.available || !state.gotFirstPoll
	state.available = true
	state.gotFirstPoll = true

	for _, ev := range events.InverterReadingToUpdateEvents(msg.Reading) {
		state.eventStream.Publish(ev)
	}
	if becameAvailable {
		state.eventStream.Publish(events.InverterAvailabilityUpdateEvent(true))
	}
}

func (state *InverterPollerActor) pollFailed(err error) {
	var authErr *hanchu.AuthError
	if errors.As(err, &authErr) && !state.authGraceUsed {
		// a session can expire at any time, one re-login cycle is not a failure
		state.logger.Warn("inverterpoll@waiting auth error, will retry next cycle", zap.Error(err))
		state.authGraceUsed = true
		return
	}
	state.failures++
	state.logger.Error("inverterpoll@waiting poll failed", zap.Error(err), zap.Uint("failures", state.failures))
	if state.failures >= state.threshold && (state.available || !state.gotFirstPoll) {
		state.available = false
		state.gotFirstPoll = true
		state.eventStream.Publish(events.InverterAvailabilityUpdateEvent(false))
	}
}

func (state *InverterPollerActor) respondSnapshot(ctx actor.Context, msg domain.GetInverterSnapshotRequest) {
	state.logger.Debug("inverterpoll GetInverterSnapshotRequest")
	ForRequest(msg).Respond(ctx, domain.GetInverterSnapshotResponse{
		Reading:     state.reading,
		Available:   state.available,
		LastUpdated: state.lastUpdated,
	})
}
