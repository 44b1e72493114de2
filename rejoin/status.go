package rejoin

// DoneStatus 终止状态码
type DoneStatus string

const (
	StatusWin         DoneStatus = "WIN"
	StatusPartialWin  DoneStatus = "PARTIAL_WIN"
	StatusDraw        DoneStatus = "DRAW"
	StatusPartialLoss DoneStatus = "PARTIAL_LOSS"
	StatusLose        DoneStatus = "LOSE"
)

const (
	// AllAgents Dones中表示全部智能体结束的键
	AllAgents = "__all__"
	// HorizonDone 到达时钟结束步时为未结束的智能体记录的终止函数名
	HorizonDone = "horizon"
	// RejoinTarget 相对量观测中表示集结区域中心的目标名
	RejoinTarget = "rejoin"
)

// EpisodeState 一个episode内各智能体的终止记录
// 功能：智能体名 -> 终止函数名 -> 状态码
type EpisodeState map[string]map[string]DoneStatus

func (s EpisodeState) set(agent, done string, status DoneStatus) {
	m, ok := s[agent]
	if !ok {
		m = make(map[string]DoneStatus)
		s[agent] = m
	}
	m[done] = status
}

// Has 智能体是否有指定状态码的终止记录
func (s EpisodeState) Has(agent string, status DoneStatus) bool {
	for _, st := range s[agent] {
		if st == status {
			return true
		}
	}
	return false
}

// Outcome 智能体的最终状态码
// 说明：取全部记录中最差的状态码，无记录返回空字符串
func (s EpisodeState) Outcome(agent string) DoneStatus {
	for _, st := range []DoneStatus{StatusLose, StatusPartialLoss, StatusDraw, StatusPartialWin, StatusWin} {
		if s.Has(agent, st) {
			return st
		}
	}
	return ""
}
