// 以Connect RPC提供编队集结环境，请求与响应均为google.protobuf.Struct，
// 任意Connect/gRPC/gRPC-Web客户端无需生成代码即可调用
package envserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/rejoin"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/output"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "rejoin.v1.EnvironmentService"

	ResetProcedure  = "/" + ServiceName + "/Reset"
	StepProcedure   = "/" + ServiceName + "/Step"
	SpacesProcedure = "/" + ServiceName + "/Spaces"
	NowProcedure    = "/" + ServiceName + "/Now"
)

type (
	request  = connect.Request[structpb.Struct]
	response = connect.Response[structpb.Struct]
)

// Server 环境服务
// 功能：持有一个环境实例，所有请求串行执行；episode结束时写入输出存储
type Server struct {
	mtx sync.Mutex
	env *rejoin.Env

	rc       *config.RuntimeConfig
	store    output.Store
	runID    string
	nextSeed uint64 // 未指定种子时使用的下一个种子
	episodes int    // 已结束的episode数
}

// NewServer 创建环境服务
func NewServer(rc *config.RuntimeConfig, store output.Store, runID string) (*Server, error) {
	env, err := rejoin.NewEnv(rc)
	if err != nil {
		return nil, err
	}
	return &Server{
		env:      env,
		rc:       rc,
		store:    store,
		runID:    runID,
		nextSeed: rc.All.Experiment.Seed,
	}, nil
}

// Handler 返回服务路径前缀与HTTP处理器
func (s *Server) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ResetProcedure, connect.NewUnaryHandler(ResetProcedure, s.Reset, opts...))
	mux.Handle(StepProcedure, connect.NewUnaryHandler(StepProcedure, s.Step, opts...))
	mux.Handle(SpacesProcedure, connect.NewUnaryHandler(SpacesProcedure, s.Spaces, opts...))
	mux.Handle(NowProcedure, connect.NewUnaryHandler(NowProcedure, s.Now, opts...))
	return "/" + ServiceName + "/", mux
}

// RunServer 启动服务，ctx取消时优雅退出
func RunServer(ctx context.Context, address string, s *Server) error {
	mux := http.NewServeMux()
	mux.Handle(s.Handler())
	srv := &http.Server{Addr: address, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("server shutdown err: %v", err)
		}
	}()
	log.Infof("server listening at %v", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Reset 开始新的episode
// 请求：{"seed": 可选整数}，缺省时使用实验种子起的递增种子
// 响应：{"seed": 实际种子（十进制字符串）, "observations": {智能体: [观测]}}
func (s *Server) Reset(ctx context.Context, req *request) (*response, error) {
	seed, ok, err := parseSeed(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !ok {
		seed = s.nextSeed
		s.nextSeed++
	}
	obs, err := s.env.Reset(seed)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	log.Debugf("reset with seed %d", seed)
	return newResponse(map[string]interface{}{
		"seed":         strconv.FormatUint(seed, 10),
		"observations": observationsValue(obs),
	})
}

// Step 推进一步
// 请求：{"actions": {智能体: [动作]}}，缺失的智能体施加默认控制量
// 响应：{"observations", "rewards", "dones", "infos"}，只包含本步开始时未结束的智能体
func (s *Server) Step(ctx context.Context, req *request) (*response, error) {
	actions, err := parseActions(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for name, act := range actions {
		space, err := s.env.ActionSpace(name)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		if len(act) != space.Dim() {
			return nil, connect.NewError(connect.CodeInvalidArgument,
				fmt.Errorf("action of %s has %d values, want %d", name, len(act), space.Dim()))
		}
	}
	res, err := s.env.Step(actions)
	switch {
	case errors.Is(err, rejoin.ErrNotReset), errors.Is(err, rejoin.ErrEpisodeEnded):
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	case err != nil:
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if s.env.Done() {
		s.saveEpisode(ctx)
	}
	return newResponse(stepValue(res))
}

// Spaces 各智能体的观测与动作空间
// 响应：{"agents": {智能体: {"policy", "observation": [空间], "action": 空间}}, "plugins": {类别: [类型名]}}
func (s *Server) Spaces(ctx context.Context, req *request) (*response, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	agents := make(map[string]interface{})
	for _, name := range s.env.Agents() {
		a, err := s.env.Agent(name)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		agents[name] = map[string]interface{}{
			"policy":      a.Policy(),
			"platform":    a.PlatformName(),
			"observation": lo.Map(a.ObservationSpace(), func(p entity.BoxProp, _ int) interface{} { return boxValue(p) }),
			"action":      boxValue(a.ActionSpace()),
		}
	}
	plugins := lo.MapValues(rejoin.PluginTypes(), func(types []string, _ string) interface{} {
		return stringsValue(types)
	})
	return newResponse(map[string]interface{}{"agents": agents, "plugins": plugins})
}

// Now 当前仿真时间
// 响应：{"t": 秒, "step": 步数, "done": episode是否结束}
func (s *Server) Now(ctx context.Context, req *request) (*response, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	c := s.env.Context().Clock()
	return newResponse(map[string]interface{}{
		"t":    c.T,
		"step": float64(c.InternalStep),
		"done": s.env.Done(),
	})
}

func (s *Server) saveEpisode(ctx context.Context) {
	sum := s.env.Summary()
	rec := output.EpisodeRecord{
		RunID:      s.runID,
		Experiment: s.rc.All.Experiment.Name,
		Mode:       "serve",
		Index:      s.episodes,
		Seed:       sum.Seed,
		Steps:      sum.Steps,
		SimTime:    sum.SimTime,
		Success:    sum.Success,
		Returns:    sum.Returns,
		Outcomes:   lo.MapValues(sum.Outcomes, func(o rejoin.DoneStatus, _ string) string { return string(o) }),
		Time:       time.Now(),
	}
	s.episodes++
	if err := s.store.SaveEpisode(ctx, rec); err != nil {
		log.Errorf("save episode %d err: %v", rec.Index, err)
	}
	log.Infof("episode %d (seed %d) finished: success %v, outcomes %v", rec.Index, rec.Seed, rec.Success, rec.Outcomes)
}

func newResponse(m map[string]interface{}) (*response, error) {
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}
