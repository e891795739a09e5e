package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/hanchu2mqtt/internal/core/domain"
	"github.com/berfenger/hanchu2mqtt/internal/util/actorutil"
	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// CloudActor dispatches requests to the vendor cloud API. Each request runs
// as a background task so the mailbox is never blocked on HTTP, and requests
// for different devices run concurrently: a slow battery fetch must not hold
// back the inverter poll. The session layer in pkg/hanchu is the only shared
// serialization point (login is singleflight, everything else is stateless).
type CloudActor struct {
	behavior actor.Behavior
	inverter hanchu.InverterReader
	battery  hanchu.BatteryReader
	workMode hanchu.WorkModeController
	info     hanchu.DevicesInfo
	logger   *zap.Logger

	// parent context of every background HTTP call, cancelled on stop so
	// outstanding calls abort instead of running out their timeout
	taskCtx    context.Context
	taskCancel context.CancelFunc
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

const cloudTaskTimeout = 35 * time.Second

func NewCloudActor(inverter hanchu.InverterReader, battery hanchu.BatteryReader,
	workMode hanchu.WorkModeController, info hanchu.DevicesInfo, logger *zap.Logger) *CloudActor {
	act := &CloudActor{
		inverter: inverter,
		battery:  battery,
		workMode: workMode,
		info:     info,
		behavior: actor.NewBehavior(),
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_CLOUD, logger),
	}
	act.taskCtx, act.taskCancel = context.WithCancel(context.Background())
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *CloudActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CloudActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Stopping, *actor.Restarting:
		state.logger.Debug("cloud@default: stopping, aborting in-flight calls")
		state.taskCancel()
	case domain.ActorHealthRequest:
		state.logger.Debug("cloud@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLOUD,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetDevicesInfoRequest:
		// answered locally, no cloud round trip
		state.logger.Debug("cloud@default: GetDevicesInfoRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.GetDevicesInfoResponse{
			Info: state.info,
		})
	case domain.GetInverterReadingRequest:
		state.logger.Debug("cloud@default: GetInverterReadingRequest")
		sender := ctx.Sender()
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getInverterReading),
			mapTaskResult[domain.GetInverterReadingResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetInverterReadingResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudTaskTimeout).PipeTo(ctx.Self())
	case domain.GetBatteryReadingRequest:
		state.logger.Debug("cloud@default: GetBatteryReadingRequest")
		sender := ctx.Sender()
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getBatteryReading),
			mapTaskResult[domain.GetBatteryReadingResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetBatteryReadingResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudTaskTimeout).PipeTo(ctx.Self())
	case domain.GetEnergyFlowRequest:
		state.logger.Debug("cloud@default: GetEnergyFlowRequest")
		sender := ctx.Sender()
		date := msg.Date
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.GetEnergyFlowResponse, error) {
			return state.getEnergyFlow(date)
		}),
			mapTaskResult[domain.GetEnergyFlowResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetEnergyFlowResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudTaskTimeout).PipeTo(ctx.Self())
	case domain.SetWorkModeRequest:
		state.logger.Debug("cloud@default: SetWorkModeRequest")
		sender := ctx.Sender()
		mode := msg.Mode
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SetWorkModeResponse {
			a := state.setWorkMode(mode)
			return &a
		}),
			mapTaskResult[domain.SetWorkModeResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetWorkModeResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					Mode: mode,
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudTaskTimeout).PipeTo(ctx.Self())
	case backgroundTaskResult:
		state.logger.Debug("cloud@default backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
	default:
		state.logger.Debug("cloud@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (a *CloudActor) getInverterReading() (*domain.GetInverterReadingResponse, error) {
	ctx, cancel := context.WithTimeout(a.taskCtx, cloudTaskTimeout)
	defer cancel()

	reading, err := a.inverter.FetchInverterReading(ctx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetInverterReadingResponse{
		Reading: reading,
	}, nil
}

func (a *CloudActor) getBatteryReading() (*domain.GetBatteryReadingResponse, error) {
	ctx, cancel := context.WithTimeout(a.taskCtx, cloudTaskTimeout)
	defer cancel()

	reading, err := a.battery.FetchBatteryReading(ctx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetBatteryReadingResponse{
		Reading: reading,
	}, nil
}

func (a *CloudActor) getEnergyFlow(date string) (*domain.GetEnergyFlowResponse, error) {
	ctx, cancel := context.WithTimeout(a.taskCtx, cloudTaskTimeout)
	defer cancel()

	flow, err := a.inverter.FetchEnergyFlow(ctx, date)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetEnergyFlowResponse{
		Flow: flow,
	}, nil
}

func (a *CloudActor) setWorkMode(mode hanchu.WorkMode) domain.SetWorkModeResponse {
	ctx, cancel := context.WithTimeout(a.taskCtx, cloudTaskTimeout)
	defer cancel()

	err := a.workMode.SetWorkMode(ctx, mode)
	if err != nil {
		logger.Error(err)
		return domain.SetWorkModeResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			Mode: mode,
		}
	}
	return domain.SetWorkModeResponse{
		Mode: mode,
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
