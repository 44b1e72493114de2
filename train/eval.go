package train

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/rejoin"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/output"
)

// EvalReport 评估结果
type EvalReport struct {
	Episodes    int
	SuccessRate float64
	MeanReturn  float64
	StdReturn   float64
	Outcomes    map[rejoin.DoneStatus]int // 各智能体最终状态码计数
}

// Evaluate 评估策略
// 功能：以实验种子起的连续种子运行episodes个episode，逐个写入输出存储
// 参数：ctx-取消时中止，rc-运行时配置，policies-策略，episodes-episode数，store-输出存储，runID-记录标识
func Evaluate(ctx context.Context, rc *config.RuntimeConfig, policies PolicySet, episodes int, store output.Store, runID string) (EvalReport, error) {
	pool, err := newWorkerPool(rc, min(rc.All.Trainer.Workers, max(episodes, 1)))
	if err != nil {
		return EvalReport{}, err
	}
	if err := policies.Compatible(pool.envs[0]); err != nil {
		return EvalReport{}, err
	}
	jobs := lo.Times(episodes, func(i int) job {
		return job{episode: i, seed: rc.All.Experiment.Seed + uint64(i)}
	})
	results, err := pool.run(ctx, jobs, []PolicySet{policies})
	if err != nil {
		return EvalReport{}, err
	}

	report := EvalReport{Episodes: len(results), Outcomes: make(map[rejoin.DoneStatus]int)}
	returns := make([]float64, 0, len(results))
	successes := 0
	for _, r := range results {
		s := r.summary
		returns = append(returns, TeamReturn(s))
		if s.Success {
			successes++
		}
		for _, o := range s.Outcomes {
			report.Outcomes[o]++
		}
		rec := output.EpisodeRecord{
			RunID:      runID,
			Experiment: rc.All.Experiment.Name,
			Mode:       "eval",
			Index:      r.episode,
			Seed:       s.Seed,
			Steps:      s.Steps,
			SimTime:    s.SimTime,
			Success:    s.Success,
			Returns:    s.Returns,
			Outcomes:   lo.MapValues(s.Outcomes, func(o rejoin.DoneStatus, _ string) string { return string(o) }),
			Time:       time.Now(),
		}
		if err := store.SaveEpisode(ctx, rec); err != nil {
			log.Errorf("save episode %d err: %v", r.episode, err)
		}
		log.Debugf("episode %d (seed %d): success %v, outcomes %v, returns %v", r.episode, s.Seed, s.Success, s.Outcomes, s.Returns)
	}
	if len(results) > 0 {
		report.SuccessRate = float64(successes) / float64(len(results))
		report.MeanReturn, _ = stats.Mean(returns)
		report.StdReturn, _ = stats.StandardDeviation(returns)
	}
	log.Infof("evaluated %d episodes: success %.2f, return %.4f ± %.4f, outcomes %v",
		report.Episodes, report.SuccessRate, report.MeanReturn, report.StdReturn, report.Outcomes)
	return report, nil
}
