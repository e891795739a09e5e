package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/hanchu2mqtt/internal/config"
	"github.com/berfenger/hanchu2mqtt/internal/core/domain"
	"github.com/berfenger/hanchu2mqtt/internal/core/events"
	. "github.com/berfenger/hanchu2mqtt/internal/util/actorutil"
	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// WorkModeActor serializes work mode changes against the cloud. One command
// is in flight at a time, later commands wait in the stash. A rejected or
// failed command is reported back and not retried.
type WorkModeActor struct {
	ActorWithStates
	stash          *Stash
	cloudActor     *actor.PID
	inverterPoller *actor.PID
	config         *config.Config
	eventStream    *eventstream.EventStream
	lastMode       *hanchu.WorkMode

	logger *zap.Logger
}

func NewWorkModeActor(config *config.Config, cloudActor *actor.PID, inverterPoller *actor.PID,
	eventStream *eventstream.EventStream, logger *zap.Logger) *WorkModeActor {
	act := &WorkModeActor{
		config:         config,
		cloudActor:     cloudActor,
		inverterPoller: inverterPoller,
		stash:          &Stash{},
		logger:         ActorLogger(domain.ACTOR_ID_WORKMODE, logger),
		eventStream:    eventStream,
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(WMIdleState{
		actor: act,
	})
	return act
}

func (state *WorkModeActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Idle state

type WMIdleState struct {
	ActorState
	actor *WorkModeActor
}

func (state WMIdleState) Name() string {
	return "idle"
}

func (state WMIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("workmode@idle: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_WORKMODE,
			Healthy: true,
			State:   state.Name(),
		})
	case domain.GetWorkModeCommandRequest:
		state.actor.logger.Debug("workmode@idle: GetWorkModeCommandRequest")
		ForRequest(msg).Respond(ctx, domain.GetWorkModeCommandResponse{
			Mode: state.actor.lastMode,
		})
	case domain.SetWorkModeCommandRequest:
		state.actor.logger.Sugar().Debugf("workmode@idle: cmd setWorkMode %s", msg.Mode)
		replyTo := ForRequest(msg).ReplyTo(ctx)
		if !msg.Mode.Valid() {
			if replyTo != nil {
				ctx.Send(replyTo, domain.SetWorkModeCommandResponse{
					WorkModeCommandResponseMixIn: domain.WorkModeCommandResponseMixIn{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: fmt.Errorf("invalid work mode %d", int(msg.Mode)),
						},
					},
					Mode: msg.Mode,
				})
			}
			return
		}
		state.actor.BecomeStacked(WMAwaitAckState{
			actor:   state.actor,
			mode:    msg.Mode,
			replyTo: replyTo,
		}.OnEnterAction(ctx))
	default:
		state.actor.logger.Debug("workmode@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Await cloud ack state

type WMAwaitAckState struct {
	ActorState
	actor   *WorkModeActor
	mode    hanchu.WorkMode
	replyTo *actor.PID
}

func (state WMAwaitAckState) Name() string {
	return "awaitAck"
}

func (state WMAwaitAckState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.SetWorkModeResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("workmode@awaitAck: SetWorkModeResponse error", zap.Error(msg.GetResponseError()))
		} else {
			state.actor.logger.Sugar().Infof("workmode@awaitAck: work mode set to %s", msg.Mode)
			mode := msg.Mode
			state.actor.lastMode = &mode
			// reflect the accepted mode right away, the next poll confirms it
			state.actor.eventStream.Publish(events.WorkModeUpdateEvent(mode))
			if state.actor.inverterPoller != nil {
				ctx.Send(state.actor.inverterPoller, domain.PollNowRequest{})
			}
		}
		if state.replyTo != nil {
			ctx.Send(state.replyTo, domain.SetWorkModeCommandResponse{
				WorkModeCommandResponseMixIn: domain.WorkModeCommandResponseMixIn{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: msg.GetResponseError(),
					},
				},
				Mode: state.mode,
			})
		}
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_WORKMODE,
			Healthy: true,
			State:   state.Name(),
		})
	default:
		state.actor.logger.Debug("workmode@awaitAck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state WMAwaitAckState) OnEnterAction(ctx actor.Context) WMAwaitAckState {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.cloudActor,
		domain.SetWorkModeRequest{Mode: state.mode}, 45*time.Second),
		func(err error) any {
			return domain.SetWorkModeResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
				Mode: state.mode,
			}
		})
	return state
}
