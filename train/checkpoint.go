package train

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// Checkpoint 训练检查点
// 功能：保存最优策略参数，以及继续训练所需的搜索分布
type Checkpoint struct {
	RunID         string    `yaml:"run_id"`
	Experiment    string    `yaml:"experiment"`
	Iteration     int       `yaml:"iteration"`      // 最近完成的迭代
	BestIteration int       `yaml:"best_iteration"` // 最优候选所在迭代
	Score         float64   `yaml:"score"`          // 最优候选的平均团队回报
	SuccessRate   float64   `yaml:"success_rate"`   // 最优候选的成功率
	CreatedAt     time.Time `yaml:"created_at"`

	Policies PolicySet `yaml:"policies"`
	Mean     []float64 `yaml:"mean,omitempty"`
	Std      []float64 `yaml:"std,omitempty"`
}

// SaveCheckpoint 写入YAML检查点
// 说明：先写临时文件再重命名
func SaveCheckpoint(path string, c *Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("checkpoint encode err: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCheckpoint 读取YAML检查点
func LoadCheckpoint(path string) (*Checkpoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint load err: %w", err)
	}
	var c Checkpoint
	if err := yaml.UnmarshalStrict(b, &c); err != nil {
		return nil, fmt.Errorf("checkpoint parse err: %w", err)
	}
	if len(c.Policies) == 0 {
		return nil, fmt.Errorf("checkpoint %s has no policies", path)
	}
	for name, p := range c.Policies {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("checkpoint %s: policy %s: %w", path, name, err)
		}
	}
	return &c, nil
}

// checkpointPath 检查点路径，iteration<0表示最终检查点
func checkpointPath(dir, experiment string, iteration int) string {
	if iteration < 0 {
		return filepath.Join(dir, experiment+"-final.yml")
	}
	return filepath.Join(dir, fmt.Sprintf("%s-iter%04d.yml", experiment, iteration))
}
