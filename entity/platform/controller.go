package platform

import (
	"fmt"
	"slices"

	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/geometry"
)

// rateController 组合速率控制器
// 功能：将控制向量写入平台的待施加控制量，下一次Prepare时生效
type rateController struct {
	prop entity.BoxProp
	p    *Platform
}

func newController(p *Platform) *rateController {
	return &rateController{prop: ControlProp(p.aircraft), p: p}
}

func (c *rateController) Name() string {
	return c.prop.Name
}

func (c *rateController) Property() entity.BoxProp {
	return c.prop
}

// ApplyControl 写入待施加的控制量
// 参数：control-控制向量，超出范围的分量被限幅
func (c *rateController) ApplyControl(control []float64) error {
	if len(control) != c.prop.Dim() {
		return fmt.Errorf("controller %s of %s: got %d values, want %d", c.prop.Name, c.p.name, len(control), c.prop.Dim())
	}
	c.p.mtx.Lock()
	defer c.p.mtx.Unlock()
	c.p.pending = geometry.ClipVec(control, c.prop.Low, c.prop.High)
	return nil
}

// AppliedControl 最近一次实际施加的控制量
func (c *rateController) AppliedControl() []float64 {
	return c.p.AppliedAction()
}

// defaultControl 平台未接收控制时使用的控制量
func defaultControl(a entity.IAircraft, fixed []float64) []float64 {
	if len(fixed) > 0 {
		return slices.Clone(fixed)
	}
	return a.ControlDefault()
}
