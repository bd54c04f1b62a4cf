package fetcher

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/IshaanNene/newsgoat/internal/config"
)

// UserAgentPicker chooses the User-Agent header for each request.
type UserAgentPicker interface {
	UserAgent() string
}

// NewUserAgentPicker builds a picker for mode "random" or "round_robin".
// A nil rng seeds a private source.
func NewUserAgentPicker(mode string, agents []string, rng *rand.Rand) UserAgentPicker {
	if len(agents) == 0 {
		agents = []string{"newsgoat/" + config.Version}
	}
	if mode == "round_robin" {
		return &roundRobinAgents{agents: agents}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &randomAgents{agents: agents, rng: rng}
}

type roundRobinAgents struct {
	agents []string
	idx    atomic.Int64
}

func (p *roundRobinAgents) UserAgent() string {
	i := p.idx.Add(1) - 1
	return p.agents[i%int64(len(p.agents))]
}

type randomAgents struct {
	agents []string
	mu     sync.Mutex
	rng    *rand.Rand
}

func (p *randomAgents) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rng.Intn(len(p.agents))]
}
