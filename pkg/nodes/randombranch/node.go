// Package randombranch provides the A/B split node.
package randombranch

import (
	"fmt"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/nodes"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	"github.com/KallebyX/simao-sub001/pkg/randomizer"
)

const (
	OutputPortA = models.PortA
	OutputPortB = models.PortB
)

// Config is the authored shape of a random branch node. Probability is the
// chance of following path A and falls back to the factory default.
type Config struct {
	Probability *float64 `json:"probability"`
}

// RandomBranchNode picks path A with probability p. The choice is recorded in
// the context until the flow leaves the node, so re-evaluating the same visit
// follows the same path.
type RandomBranchNode struct {
	id          string
	probability float64
}

// NewRandomBranchNode creates a new random branch node.
func NewRandomBranchNode(id string, config map[string]any, defaultProbability float64) (*RandomBranchNode, error) {
	var cfg Config
	if err := nodes.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	p := defaultProbability
	if cfg.Probability != nil {
		p = *cfg.Probability
	}

	if err := randomizer.ValidateProbability(p); err != nil {
		return nil, err
	}

	return &RandomBranchNode{id: id, probability: p}, nil
}

// ID returns the node ID.
func (n *RandomBranchNode) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *RandomBranchNode) Kind() models.NodeKind {
	return models.NodeKindRandomBranch
}

// Probability returns the effective chance of path A.
func (n *RandomBranchNode) Probability() float64 {
	return n.probability
}

// Visit chooses a path, reusing an earlier choice when one is recorded.
func (n *RandomBranchNode) Visit(v *protocol.Visit) (protocol.Outcome, error) {
	key := models.ReservedKey(models.ReservedRandom, n.id)

	if previous, ok := v.Context.Variables[key].(string); ok {
		switch previous {
		case OutputPortA, OutputPortB:
			return protocol.Outcome{Port: previous}, nil
		default:
			return protocol.Outcome{}, fmt.Errorf("%w: recorded path '%s' is not A or B", models.ErrNodeConfigInvalid, previous)
		}
	}

	src := v.Random
	if src == nil {
		src = randomizer.NewSource()
	}

	path, _ := randomizer.Choose(n.probability, src)
	v.Context.Variables[key] = path

	return protocol.Outcome{Port: path}, nil
}

// OutputPorts returns the A and B ports.
func (n *RandomBranchNode) OutputPorts() []string {
	return []string{OutputPortA, OutputPortB}
}
