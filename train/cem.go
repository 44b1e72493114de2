package train

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/container"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/output"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/randengine"
	"gonum.org/v1/gonum/floats"
)

// candidate 一个候选参数向量及其评估结果
type candidate struct {
	theta   []float64
	score   float64 // 平均团队回报
	success float64 // 成功率
}

// Trainer 交叉熵方法（CEM）训练器
// 功能：在全部策略参数拼接成的向量空间上维护对角高斯搜索分布，
// 每次迭代采样候选、并行评估、选取精英并更新分布
type Trainer struct {
	rc    *config.RuntimeConfig
	tc    config.Trainer
	store output.Store
	runID string

	pool     *workerPool
	template PolicySet
	rng      *randengine.Engine

	mean []float64
	std  []float64

	lastIteration int // 最近完成的迭代
	best          *candidate
	bestIteration int
}

// NewTrainer 创建训练器
// 功能：创建worker环境与全零策略，搜索分布初始化为N(0, init_std^2)
// 参数：rc-运行时配置，store-输出存储
func NewTrainer(rc *config.RuntimeConfig, store output.Store) (*Trainer, error) {
	tc := rc.All.Trainer
	if tc.Algorithm != config.AlgorithmCEM {
		return nil, fmt.Errorf("unsupported trainer algorithm %q", tc.Algorithm)
	}
	pool, err := newWorkerPool(rc, tc.Workers)
	if err != nil {
		return nil, err
	}
	template, err := NewPolicySet(pool.envs[0])
	if err != nil {
		return nil, err
	}
	n := template.NumParams()
	t := &Trainer{
		rc:       rc,
		tc:       tc,
		store:    store,
		runID:    uuid.NewString(),
		pool:     pool,
		template: template,
		rng:      randengine.New(rc.All.Experiment.Seed),
		mean:     make([]float64, n),
		std:      lo.Times(n, func(int) float64 { return tc.InitStd }),
	}
	log.Infof("run %s: %d policies %v, %d parameters, %d workers", t.runID, len(template), template.Names(), n, len(pool.envs))
	return t, nil
}

// RunID 本次训练的唯一标识
func (t *Trainer) RunID() string {
	return t.runID
}

// Resume 从检查点继续训练
// 功能：以检查点中的搜索分布（缺失时以最优参数为均值）继续迭代
func (t *Trainer) Resume(c *Checkpoint) error {
	if err := c.Policies.Compatible(t.pool.envs[0]); err != nil {
		return err
	}
	theta := c.Policies.Flatten()
	if len(c.Mean) == len(theta) && len(c.Std) == len(theta) {
		copy(t.mean, c.Mean)
		copy(t.std, c.Std)
	} else {
		copy(t.mean, theta)
	}
	t.best = &candidate{theta: theta, score: c.Score, success: c.SuccessRate}
	t.bestIteration = c.BestIteration
	t.lastIteration = c.Iteration
	log.Infof("resume from iteration %d (run %s, score %.4f)", c.Iteration, c.RunID, c.Score)
	return nil
}

// Run 执行训练
// 功能：迭代至iterations次、最优候选成功率达到target_success_rate或ctx被取消
// 返回：最终检查点（已写入checkpoint_dir）；ctx取消视为正常结束
func (t *Trainer) Run(ctx context.Context) (*Checkpoint, error) {
	for it := t.lastIteration + 1; it <= t.tc.Iterations; it++ {
		rec, err := t.iterate(ctx, it)
		if errors.Is(err, context.Canceled) {
			log.Warnf("training interrupted at iteration %d", it)
			break
		}
		if err != nil {
			return nil, err
		}
		t.lastIteration = it
		if err := t.store.SaveIteration(ctx, rec); err != nil {
			log.Errorf("save iteration %d err: %v", it, err)
		}
		if t.tc.CheckpointEvery > 0 && it%t.tc.CheckpointEvery == 0 {
			if _, err := t.checkpoint(checkpointPath(t.rc.All.Output.CheckpointDir, t.rc.All.Experiment.Name, it)); err != nil {
				return nil, err
			}
		}
		if t.tc.TargetSuccessRate > 0 && rec.BestSuccessRate >= t.tc.TargetSuccessRate {
			log.Infof("target success rate %.2f reached at iteration %d", t.tc.TargetSuccessRate, it)
			break
		}
	}
	if t.best == nil {
		return nil, errors.New("training stopped before any iteration completed")
	}
	final, err := t.checkpoint(checkpointPath(t.rc.All.Output.CheckpointDir, t.rc.All.Experiment.Name, -1))
	if err != nil {
		return nil, err
	}
	return final, nil
}

// iterate 执行一次迭代
// 算法说明：
// 1. 采样population个候选：theta = mean + std * N(0, 1)
// 2. 每个候选评估episodes_per_candidate个episode，同一迭代内各候选使用相同的种子序列
// 3. 按平均团队回报选出前elite_frac的精英（至少1个）
// 4. mean、std更新为精英的均值与标准差，与旧值按smoothing加权，std不低于min_std
func (t *Trainer) iterate(ctx context.Context, it int) (output.IterationRecord, error) {
	start := time.Now()
	pop, episodes := t.tc.Population, t.tc.EpisodesPerCandidate

	cands := make([]*candidate, pop)
	sets := make([]PolicySet, pop)
	for i := range cands {
		theta := make([]float64, len(t.mean))
		for k := range theta {
			theta[k] = t.mean[k] + t.std[k]*t.rng.NormFloat64()
		}
		cands[i] = &candidate{theta: theta}
		sets[i] = t.template.Clone()
		if err := sets[i].Load(theta); err != nil {
			return output.IterationRecord{}, err
		}
	}
	seeds := lo.Times(episodes, func(int) uint64 { return t.rng.Uint64() })
	jobs := make([]job, 0, pop*episodes)
	for i := range cands {
		for e, seed := range seeds {
			jobs = append(jobs, job{candidate: i, episode: e, seed: seed})
		}
	}

	results, err := t.pool.run(ctx, jobs, sets)
	if err != nil {
		return output.IterationRecord{}, err
	}

	returns := make([]float64, 0, len(results))
	successes := 0
	for _, r := range results {
		ret := TeamReturn(r.summary)
		returns = append(returns, ret)
		c := cands[r.candidate]
		c.score += ret / float64(episodes)
		if r.summary.Success {
			c.success += 1 / float64(episodes)
			successes++
		}
	}

	nElite := max(1, int(math.Round(t.tc.EliteFrac*float64(pop))))
	top := container.NewTopK[*candidate](nElite)
	for _, c := range cands {
		top.Push(c, c.score)
	}
	elites, eliteScores := top.Drain()
	if t.best == nil || elites[0].score > t.best.score {
		t.best = elites[0]
		t.bestIteration = it
	}
	t.updateDistribution(elites)

	meanRet, _ := stats.Mean(returns)
	maxRet, _ := stats.Max(returns)
	p90, _ := stats.Percentile(returns, 90)
	eliteMean, _ := stats.Mean(eliteScores)
	rec := output.IterationRecord{
		RunID:           t.runID,
		Experiment:      t.rc.All.Experiment.Name,
		Iteration:       it,
		MeanReturn:      meanRet,
		MaxReturn:       maxRet,
		P90Return:       p90,
		EliteMeanReturn: eliteMean,
		SuccessRate:     float64(successes) / float64(len(results)),
		BestSuccessRate: elites[0].success,
		MeanStd:         floats.Sum(t.std) / float64(len(t.std)),
		Elapsed:         time.Since(start).Seconds(),
		Time:            time.Now(),
	}
	log.Infof(
		"iter %d: return mean %.4f max %.4f p90 %.4f elite %.4f, success %.2f (best %.2f), std %.4f, %.1fs",
		it, rec.MeanReturn, rec.MaxReturn, rec.P90Return, rec.EliteMeanReturn,
		rec.SuccessRate, rec.BestSuccessRate, rec.MeanStd, rec.Elapsed,
	)
	return rec, nil
}

// updateDistribution 用精英更新搜索分布
func (t *Trainer) updateDistribution(elites []*candidate) {
	alpha := t.tc.Smoothing
	column := make([]float64, len(elites))
	for k := range t.mean {
		for i, e := range elites {
			column[i] = e.theta[k]
		}
		m, _ := stats.Mean(column)
		s, _ := stats.StandardDeviationPopulation(column)
		t.mean[k] = alpha*t.mean[k] + (1-alpha)*m
		t.std[k] = math.Max(t.tc.MinStd, alpha*t.std[k]+(1-alpha)*s)
	}
}

// checkpoint 以当前最优候选写入检查点
func (t *Trainer) checkpoint(path string) (*Checkpoint, error) {
	policies := t.template.Clone()
	if err := policies.Load(t.best.theta); err != nil {
		return nil, err
	}
	c := &Checkpoint{
		RunID:         t.runID,
		Experiment:    t.rc.All.Experiment.Name,
		Iteration:     t.lastIteration,
		BestIteration: t.bestIteration,
		Score:         t.best.score,
		SuccessRate:   t.best.success,
		CreatedAt:     time.Now(),
		Policies:      policies,
		Mean:          slices.Clone(t.mean),
		Std:           slices.Clone(t.std),
	}
	if err := SaveCheckpoint(path, c); err != nil {
		return nil, fmt.Errorf("save checkpoint %s err: %w", path, err)
	}
	log.Infof("checkpoint saved to %s (iteration %d, best %d, score %.4f)", path, c.Iteration, c.BestIteration, c.Score)
	return c, nil
}
