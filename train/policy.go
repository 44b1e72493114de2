package train

import (
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/rejoin"
	"gonum.org/v1/gonum/mat"
)

// LinearPolicy 线性tanh策略
// 功能：a = tanh(W·o + b)，输出在(-1, 1)内，由调用方缩放到动作空间
type LinearPolicy struct {
	ObsDim  int       `yaml:"obs_dim"`
	ActDim  int       `yaml:"act_dim"`
	Weights []float64 `yaml:"weights"` // ActDim×ObsDim，行优先
	Bias    []float64 `yaml:"bias"`
}

// NewLinearPolicy 创建全零参数的策略
func NewLinearPolicy(obsDim, actDim int) *LinearPolicy {
	return &LinearPolicy{
		ObsDim:  obsDim,
		ActDim:  actDim,
		Weights: make([]float64, obsDim*actDim),
		Bias:    make([]float64, actDim),
	}
}

// NumParams 参数个数
func (p *LinearPolicy) NumParams() int {
	return p.ObsDim*p.ActDim + p.ActDim
}

// Act 计算动作
func (p *LinearPolicy) Act(obs []float64) ([]float64, error) {
	if len(obs) != p.ObsDim {
		return nil, fmt.Errorf("observation has %d values, policy expects %d", len(obs), p.ObsDim)
	}
	w := mat.NewDense(p.ActDim, p.ObsDim, p.Weights)
	var out mat.VecDense
	out.MulVec(w, mat.NewVecDense(p.ObsDim, slices.Clone(obs)))
	out.AddVec(&out, mat.NewVecDense(p.ActDim, p.Bias))
	res := make([]float64, p.ActDim)
	for i := range res {
		res[i] = math.Tanh(out.AtVec(i))
	}
	return res, nil
}

// validate 检查参数维度
func (p *LinearPolicy) validate() error {
	if p.ObsDim <= 0 || p.ActDim <= 0 {
		return fmt.Errorf("invalid policy shape %dx%d", p.ActDim, p.ObsDim)
	}
	if len(p.Weights) != p.ObsDim*p.ActDim || len(p.Bias) != p.ActDim {
		return fmt.Errorf("policy %dx%d has %d weights and %d biases", p.ActDim, p.ObsDim, len(p.Weights), len(p.Bias))
	}
	return nil
}

// PolicySet 策略名 -> 策略
// 说明：同一策略名下的智能体共享参数
type PolicySet map[string]*LinearPolicy

// NewPolicySet 按环境中智能体的策略分组创建全零策略
// 返回：同一策略下智能体的观测/动作维度不一致时返回错误
func NewPolicySet(env *rejoin.Env) (PolicySet, error) {
	s := make(PolicySet)
	for _, name := range env.Agents() {
		a, err := env.Agent(name)
		if err != nil {
			return nil, err
		}
		obsDim, actDim := a.ObservationDim(), a.ActionSpace().Dim()
		if p, ok := s[a.Policy()]; ok {
			if p.ObsDim != obsDim || p.ActDim != actDim {
				return nil, fmt.Errorf("agent %s does not fit shared policy %s (%dx%d vs %dx%d)", name, a.Policy(), actDim, obsDim, p.ActDim, p.ObsDim)
			}
			continue
		}
		s[a.Policy()] = NewLinearPolicy(obsDim, actDim)
	}
	return s, nil
}

// Names 按字典序的策略名，决定参数向量的拼接顺序
func (s PolicySet) Names() []string {
	names := lo.Keys(s)
	slices.Sort(names)
	return names
}

// NumParams 全部策略的参数个数
func (s PolicySet) NumParams() int {
	return lo.SumBy(lo.Values(s), func(p *LinearPolicy) int { return p.NumParams() })
}

// Flatten 拼接全部参数
func (s PolicySet) Flatten() []float64 {
	res := make([]float64, 0, s.NumParams())
	for _, name := range s.Names() {
		res = append(res, s[name].Weights...)
		res = append(res, s[name].Bias...)
	}
	return res
}

// Load 从参数向量写入全部策略
func (s PolicySet) Load(theta []float64) error {
	if len(theta) != s.NumParams() {
		return fmt.Errorf("parameter vector has %d values, want %d", len(theta), s.NumParams())
	}
	off := 0
	for _, name := range s.Names() {
		p := s[name]
		off += copy(p.Weights, theta[off:off+len(p.Weights)])
		off += copy(p.Bias, theta[off:off+len(p.Bias)])
	}
	return nil
}

// Clone 深拷贝
func (s PolicySet) Clone() PolicySet {
	res := make(PolicySet, len(s))
	for name, p := range s {
		res[name] = &LinearPolicy{
			ObsDim:  p.ObsDim,
			ActDim:  p.ActDim,
			Weights: slices.Clone(p.Weights),
			Bias:    slices.Clone(p.Bias),
		}
	}
	return res
}

// Compatible 检查策略集合与环境是否匹配
func (s PolicySet) Compatible(env *rejoin.Env) error {
	want, err := NewPolicySet(env)
	if err != nil {
		return err
	}
	for name, w := range want {
		p, ok := s[name]
		if !ok {
			return fmt.Errorf("missing policy %s", name)
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("policy %s: %w", name, err)
		}
		if p.ObsDim != w.ObsDim || p.ActDim != w.ActDim {
			return fmt.Errorf("policy %s is %dx%d, environment needs %dx%d", name, p.ActDim, p.ObsDim, w.ActDim, w.ObsDim)
		}
	}
	return nil
}
