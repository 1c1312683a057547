// Package control exposes a running battle over gRPC. Commands pause,
// resume or stop the battle and kill single agents; views return the
// latest snapshot and the result.
//
// Messages are the well-known protobuf types (Empty and Struct), so the
// service needs no generated code.
package control

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/robot-arena/internal/battle"
	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/recording"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "arena.control.v1.BattleControl"

// Battle is the part of a battle the control service drives.
type Battle interface {
	ID() string
	Pause()
	Resume()
	Paused() bool
	Stop(forced bool)
	KillAgent(id model.AgentID) error
	Tick() int64
	State() *state.BattleState
	Result() *battle.Result
}

// BattleControlServer is the server API of the control service.
type BattleControlServer interface {
	Pause(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Resume(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Stop(context.Context, *structpb.Struct) (*structpb.Struct, error)
	KillAgent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetAgent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Result(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Service implements BattleControlServer for one battle.
type Service struct {
	battle Battle
	log    logging.Logger
}

// NewService binds the control service to b.
func NewService(b Battle, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{battle: b, log: log}
}

func (s *Service) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

func (s *Service) finished() bool {
	return s.battle.Result() != nil || s.battle.State().Snapshot().Finished
}

func (s *Service) status() (*structpb.Struct, error) {
	snap := s.battle.State().Snapshot()
	return structpb.NewStruct(map[string]interface{}{
		"battle_id": s.battle.ID(),
		"tick":      float64(s.battle.Tick()),
		"paused":    s.battle.Paused(),
		"finished":  s.finished(),
		"alive":     float64(snap.Alive()),
	})
}

// command runs fn unless the battle is over and returns the new status.
func (s *Service) command(ctx context.Context, name string, fn func() error) (*structpb.Struct, error) {
	ctx = logging.ContextWithBattleID(ctx, s.battle.ID())
	if s.finished() {
		return nil, ToStatusError(fmt.Errorf("%w: cannot %s", ErrFinished, name))
	}
	if err := fn(); err != nil {
		return nil, ToStatusError(err)
	}
	s.logger(ctx).Info(ctx, "battle control command", logging.String("command", name), logging.Int64("tick", s.battle.Tick()))
	out, err := s.status()
	return out, ToStatusError(err)
}

func (s *Service) Pause(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "pause", func() error { s.battle.Pause(); return nil })
}

func (s *Service) Resume(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "resume", func() error { s.battle.Resume(); return nil })
}

// Stop ends the battle. With "forced" set the battle aborts at once;
// otherwise it ends at the next tick boundary and survivors are resolved
// as usual.
func (s *Service) Stop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	forced := req.GetFields()["forced"].GetBoolValue()
	name := "stop"
	if forced {
		name = "force stop"
	}
	return s.command(ctx, name, func() error { s.battle.Stop(forced); return nil })
}

// KillAgent kills the agent named by "id" at the next tick boundary.
func (s *Service) KillAgent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, ToStatusError(fmt.Errorf("%w: id is required", ErrInvalidArgument))
	}
	return s.command(ctx, "kill "+id, func() error { return s.battle.KillAgent(model.AgentID(id)) })
}

// Snapshot returns the latest published frame.
func (s *Service) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(recording.NewFrame(s.battle.State().Snapshot()))
	return out, ToStatusError(err)
}

// GetAgent returns one agent of the latest frame. The request carries the
// agent ID under "id".
func (s *Service) GetAgent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, ToStatusError(fmt.Errorf("%w: id is required", ErrInvalidArgument))
	}
	frame := recording.NewFrame(s.battle.State().Snapshot())
	for _, a := range frame.Agents {
		if a.ID == model.AgentID(id) {
			out, err := toStruct(a)
			return out, ToStatusError(err)
		}
	}
	return nil, ToStatusError(fmt.Errorf("%w: %s", state.ErrAgentNotFound, id))
}

// Result returns the battle result once the battle has finished.
func (s *Service) Result(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res := s.battle.Result()
	if res == nil {
		return nil, ToStatusError(ErrNotFinished)
	}
	out, err := toStruct(res)
	return out, ToStatusError(err)
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// RegisterBattleControlServer registers srv on s.
func RegisterBattleControlServer(s grpc.ServiceRegistrar, srv BattleControlServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func emptyHandler(name string, call func(BattleControlServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BattleControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(BattleControlServer), ctx, req.(*emptypb.Empty))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func structHandler(name string, call func(BattleControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BattleControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(BattleControlServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BattleControlServer)(nil),
	Methods: []grpc.MethodDesc{
		emptyHandler("Pause", BattleControlServer.Pause),
		emptyHandler("Resume", BattleControlServer.Resume),
		structHandler("Stop", BattleControlServer.Stop),
		structHandler("KillAgent", BattleControlServer.KillAgent),
		emptyHandler("Snapshot", BattleControlServer.Snapshot),
		structHandler("GetAgent", BattleControlServer.GetAgent),
		emptyHandler("Result", BattleControlServer.Result),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "arena/control/v1/control.proto",
}
