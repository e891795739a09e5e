package domain

import (
	"fmt"

	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"
)

// WorkModeCommandRequest

type WorkModeCommandRequest interface {
	ActorRequest
	WorkModeCommand() string
}

type WorkModeCommandRequestMixIn struct {
	ActorRequestMixIn
}

func (r WorkModeCommandRequestMixIn) WorkModeCommand() string {
	return fmt.Sprintf("%T", r)
}

// WorkModeCommandResponse

type WorkModeCommandResponse interface {
	ActorResponse
	WorkModeCommandResponse() string
}

type WorkModeCommandResponseMixIn struct {
	ActorResponseMixIn
}

func (r WorkModeCommandResponseMixIn) WorkModeCommandResponse() string {
	return fmt.Sprintf("%T", r)
}

// WorkMode commands

type SetWorkModeCommandRequest struct {
	WorkModeCommandRequestMixIn
	Mode hanchu.WorkMode
}

type SetWorkModeCommandResponse struct {
	WorkModeCommandResponseMixIn
	Mode hanchu.WorkMode
}

type GetWorkModeCommandRequest struct {
	WorkModeCommandRequestMixIn
}

type GetWorkModeCommandResponse struct {
	WorkModeCommandResponseMixIn
	Mode *hanchu.WorkMode
}

// ensure interface compliance
var _ WorkModeCommandRequest = (*SetWorkModeCommandRequest)(nil)
