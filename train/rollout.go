package train

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/tsinghua-fib-lab/rejoin-sim/rejoin"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"golang.org/x/sync/errgroup"
)

// RunEpisode 用给定策略运行一个完整episode
// 功能：每步由智能体所属策略计算动作，并从(-1, 1)缩放到智能体的动作空间
// 参数：ctx-取消时中止，env-环境（独占使用），policies-策略集合，seed-episode种子
// 返回：episode统计
func RunEpisode(ctx context.Context, env *rejoin.Env, policies PolicySet, seed uint64) (rejoin.EpisodeSummary, error) {
	obs, err := env.Reset(seed)
	if err != nil {
		return rejoin.EpisodeSummary{}, err
	}
	for !env.Done() {
		if err := ctx.Err(); err != nil {
			return rejoin.EpisodeSummary{}, err
		}
		actions := make(map[string][]float64, len(obs))
		for name, o := range obs {
			a, err := env.Agent(name)
			if err != nil {
				return rejoin.EpisodeSummary{}, err
			}
			p, ok := policies[a.Policy()]
			if !ok {
				return rejoin.EpisodeSummary{}, fmt.Errorf("no policy %s for agent %s", a.Policy(), name)
			}
			act, err := p.Act(o)
			if err != nil {
				return rejoin.EpisodeSummary{}, fmt.Errorf("agent %s: %w", name, err)
			}
			space := a.ActionSpace()
			for i := range act {
				act[i] = space.Low[i] + (act[i]+1)/2*(space.High[i]-space.Low[i])
			}
			actions[name] = act
		}
		res, err := env.Step(actions)
		if err != nil {
			return rejoin.EpisodeSummary{}, err
		}
		obs = make(map[string][]float64, len(res.Observations))
		for name, o := range res.Observations {
			if !res.Dones[name] {
				obs[name] = o
			}
		}
	}
	return env.Summary(), nil
}

// TeamReturn 全部智能体回报的均值
func TeamReturn(s rejoin.EpisodeSummary) float64 {
	returns := make([]float64, 0, len(s.Returns))
	for _, r := range s.Returns {
		returns = append(returns, r)
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	return mean
}

// job 一次episode评估任务
type job struct {
	candidate int
	episode   int
	seed      uint64
}

// result 评估结果
type result struct {
	job
	summary rejoin.EpisodeSummary
}

// workerPool episode评估协程池
// 说明：每个worker独占一个环境实例，策略参数只读共享
type workerPool struct {
	envs []*rejoin.Env
}

func newWorkerPool(rc *config.RuntimeConfig, workers int) (*workerPool, error) {
	p := &workerPool{envs: make([]*rejoin.Env, max(workers, 1))}
	for i := range p.envs {
		env, err := rejoin.NewEnv(rc)
		if err != nil {
			return nil, err
		}
		p.envs[i] = env
	}
	return p, nil
}

// run 并行执行全部任务
// 参数：candidates-各候选的策略集合，按job.candidate索引
// 返回：与jobs一一对应的结果；任一任务出错或ctx取消时返回错误
func (p *workerPool) run(ctx context.Context, jobs []job, candidates []PolicySet) ([]result, error) {
	results := make([]result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan int)
	g.Go(func() error {
		defer close(queue)
		for i := range jobs {
			select {
			case queue <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for _, env := range p.envs {
		g.Go(func() error {
			for i := range queue {
				j := jobs[i]
				s, err := RunEpisode(gctx, env, candidates[j.candidate], j.seed)
				if err != nil {
					return err
				}
				results[i] = result{job: j, summary: s}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
