// 训练输出，将迭代统计与episode记录写入MongoDB或SQLite
package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
)

var log = logrus.WithField("module", "output")

// IterationRecord 一次训练迭代的统计
type IterationRecord struct {
	RunID           string    `json:"run_id" bson:"run_id"`
	Experiment      string    `json:"experiment" bson:"experiment"`
	Iteration       int       `json:"iteration" bson:"iteration"`
	MeanReturn      float64   `json:"mean_return" bson:"mean_return"`
	MaxReturn       float64   `json:"max_return" bson:"max_return"`
	P90Return       float64   `json:"p90_return" bson:"p90_return"`
	EliteMeanReturn float64   `json:"elite_mean_return" bson:"elite_mean_return"`
	SuccessRate     float64   `json:"success_rate" bson:"success_rate"`
	BestSuccessRate float64   `json:"best_success_rate" bson:"best_success_rate"`
	MeanStd         float64   `json:"mean_std" bson:"mean_std"`
	Elapsed         float64   `json:"elapsed" bson:"elapsed"` // 本次迭代耗时（秒）
	Time            time.Time `json:"time" bson:"time"`
}

// EpisodeRecord 一个episode的结果
type EpisodeRecord struct {
	RunID      string             `json:"run_id" bson:"run_id"`
	Experiment string             `json:"experiment" bson:"experiment"`
	Mode       string             `json:"mode" bson:"mode"` // train、eval或serve
	Index      int                `json:"index" bson:"index"`
	Seed       uint64             `json:"seed" bson:"seed"`
	Steps      int32              `json:"steps" bson:"steps"`
	SimTime    float64            `json:"sim_time" bson:"sim_time"`
	Success    bool               `json:"success" bson:"success"`
	Returns    map[string]float64 `json:"returns" bson:"returns"`
	Outcomes   map[string]string  `json:"outcomes" bson:"outcomes"`
	Time       time.Time          `json:"time" bson:"time"`
}

// Store 输出存储
type Store interface {
	SaveIteration(ctx context.Context, r IterationRecord) error
	SaveEpisode(ctx context.Context, r EpisodeRecord) error
	Close(ctx context.Context) error
}

// Open 按URI打开输出存储
// 功能：mongodb://或mongodb+srv://使用MongoDB，sqlite://path使用SQLite，空URI不输出
// 参数：c-输出配置，experiment-实验名（作为集合名/表记录前缀）
func Open(ctx context.Context, c config.Output, experiment string) (Store, error) {
	uri := c.URI
	switch {
	case uri == "":
		log.Infof("no output uri, results are only logged")
		return nopStore{}, nil
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return newMongoStore(ctx, uri, c.DB, experiment)
	case strings.HasPrefix(uri, "sqlite://"):
		return newSQLiteStore(ctx, strings.TrimPrefix(uri, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported output uri %q", uri)
	}
}

type nopStore struct{}

func (nopStore) SaveIteration(context.Context, IterationRecord) error { return nil }
func (nopStore) SaveEpisode(context.Context, EpisodeRecord) error     { return nil }
func (nopStore) Close(context.Context) error                          { return nil }
